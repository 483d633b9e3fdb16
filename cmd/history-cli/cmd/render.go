package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"automarket-backend/internal/historyapi"
	"automarket-backend/internal/service"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

const maxMessageWidth = 60

func statusColor(status historyapi.Status) *color.Color {
	switch status {
	case historyapi.StatusSuccess:
		return color.New(color.FgHiGreen)
	case historyapi.StatusFailed:
		return color.New(color.FgRed)
	case historyapi.StatusSkipped:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgHiBlue)
	}
}

func formatStatus(status historyapi.Status) string {
	return statusColor(status).Sprintf("%s (%s)", status.Label(), status)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func formatMessage(msg *string) string {
	if msg == nil {
		return ""
	}
	if len(*msg) > maxMessageWidth {
		return (*msg)[:maxMessageWidth] + "..."
	}
	return *msg
}

func renderHistories(views []service.OperatorView) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Listing", "VIN", "Registration", "First registration", "Status", "Fetched at", "Last error"})
	for _, view := range views {
		t.AppendRow(table.Row{
			view.ListingId,
			view.Vin,
			view.RegistrationNumber,
			view.FirstRegistrationDate,
			formatStatus(view.Status),
			formatTime(view.FetchedAt),
			formatMessage(view.LastErrorMessage),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(views)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func renderPublic(view service.PublicView) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendRow(table.Row{"Status", formatStatus(view.Status)})
	t.AppendRow(table.Row{"Fetched at", formatTime(view.FetchedAt)})
	if view.Explanation != "" {
		t.AppendRow(table.Row{"Note", view.Explanation})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func printPayload(payload *historyapi.Payload) {
	if payload == nil {
		fmt.Println("no payload")
		return
	}
	serialized, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(serialized))
}
