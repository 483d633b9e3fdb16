package cmd

import (
	"errors"
	"log"
	"os"

	"automarket-backend/internal/components/configutil"
	"automarket-backend/internal/components/telemetry"
	"automarket-backend/internal/historyapi"
	"automarket-backend/internal/scrapers/registry"

	"github.com/spf13/cobra"
)

type fetchConfig struct {
	Registry registry.Config `json:"registry"`
}

var (
	fetchApiVersion string
	fetchDumpDir    string
)

func init() {
	fetchCmd.Flags().StringVar(&fetchApiVersion, "api-version", "", "Registry api version, overrides the configuration.")
	fetchCmd.Flags().StringVar(&fetchDumpDir, "dump", "", "Directory to write every registry request and response to, it is emptied first.")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <vin> <registration number> <first registration date>",
	Short: "Fetches a vehicle history straight from the registry, nothing is stored.",
	Long: "Fetches a vehicle history straight from the registry, nothing is stored. " +
		"The registry configuration is read from the closest config.json5 up the directory tree.",
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := configutil.ReadRecursively("config.json5", fetchConfig{
			Registry: registry.DefaultConfig(),
		})
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Fatal(err)
		}
		if fetchApiVersion != "" {
			config.Registry.ApiVersion = fetchApiVersion
		}

		opts := []registry.Option{registry.WithTelemetryAPI(telemetry.SlogAPI{})}
		if fetchDumpDir != "" {
			output, err := telemetry.NewFilesystemOutput(fetchDumpDir)
			if err != nil {
				log.Fatal(err)
			}
			opts = append(opts, registry.WithMessageDump(telemetry.NewMessageDump(output)))
		}

		client, err := registry.NewClient(config.Registry, opts...)
		if err != nil {
			log.Fatal(err)
		}
		result, err := client.Fetch(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			var regErr *registry.Error
			if errors.As(err, &regErr) && regErr.Uri != "" {
				log.Printf("%s returned: %s", regErr.Uri, regErr.BodySummary())
			}
			log.Fatal(err)
		}

		printPayload(&historyapi.Payload{
			VehicleData:  result.VehicleData,
			TimelineData: result.TimelineData,
		})
	},
}
