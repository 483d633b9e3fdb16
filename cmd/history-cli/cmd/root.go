package cmd

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"automarket-backend/internal/components/telemetry"
	"automarket-backend/internal/service"

	"github.com/spf13/cobra"
)

// BaseUrl and AccessToken are set from the environment before Execute, the flags override
// them when given.
var (
	BaseUrl     string
	AccessToken string

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "history-cli",
	Short: "history-cli is a CLI interface for the automarket vehicle history service.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&BaseUrl, "base-url", "", "Base url of the history service (defaults to $HISTORY_BASE_URL).")
	rootCmd.PersistentFlags().StringVar(&AccessToken, "token", "", "Operator access token (defaults to $HISTORY_ACCESS_TOKEN).")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
}

func historyClient() service.HistoryServiceClient {
	if BaseUrl == "" {
		log.Fatal("You should specify the base url of the history service with --base-url or in the environment variable HISTORY_BASE_URL.")
	}
	return service.NewHistoryServiceClient(http.DefaultClient, BaseUrl, AccessToken)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
