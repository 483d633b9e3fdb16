package cmd

import (
	"log"
	"strconv"

	"automarket-backend/internal/historyapi"
	"automarket-backend/internal/service"

	"github.com/spf13/cobra"
)

var showPayload bool

func init() {
	showCmd.Flags().BoolVar(&showPayload, "payload", false, "Print the registry payload as json.")
	refreshCmd.Flags().BoolVar(&showPayload, "payload", false, "Print the registry payload as json.")

	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
}

func parseListingId(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		log.Fatalf("invalid listing id %q", arg)
	}
	return id
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <listing id>",
	Short: "Fetches the vehicle history of a listing again and prints the stored record.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		res, err := historyClient().RefreshHistory(cmd.Context(), &service.RefreshHistoryRequest{
			ListingId: parseListingId(args[0]),
		})
		if err != nil {
			log.Fatal(err)
		}
		renderHistories([]service.OperatorView{res.History})
		if showPayload {
			printPayload(res.History.Payload)
		}
	},
}

var showCmd = &cobra.Command{
	Use:   "show <listing id>",
	Short: "Prints the vehicle history of a listing the way end users see it.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		res, err := historyClient().GetHistory(cmd.Context(), &service.GetHistoryRequest{
			ListingId: parseListingId(args[0]),
		})
		if err != nil {
			log.Fatal(err)
		}
		if res.History == nil {
			log.Println("no history was requested for this listing yet")
			return
		}
		renderPublic(*res.History)
		if showPayload {
			printPayload(res.History.Payload)
		}
	},
}

var listStatus string

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Only list histories with this status (pending, success, failed, skipped).")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists stored vehicle histories.",
	Run: func(cmd *cobra.Command, args []string) {
		res, err := historyClient().ListHistory(cmd.Context(), &service.ListHistoryRequest{
			Status: historyapi.Status(listStatus),
		})
		if err != nil {
			log.Fatal(err)
		}
		renderHistories(res.Histories)
	},
}
