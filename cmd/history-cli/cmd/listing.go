package cmd

import (
	"log"

	"automarket-backend/internal/service"

	"github.com/spf13/cobra"
)

var (
	listingId             int64
	vin                   string
	registrationNumber    string
	firstRegistrationDate string
)

func init() {
	listingSetCmd.Flags().Int64Var(&listingId, "id", 0, "Id of the listing to update, omit to create one.")
	listingSetCmd.Flags().StringVar(&vin, "vin", "", "Vehicle identification number.")
	listingSetCmd.Flags().StringVar(&registrationNumber, "registration", "", "Registration (plate) number.")
	listingSetCmd.Flags().StringVar(&firstRegistrationDate, "first-registration", "", "Date of first registration (YYYY-MM-DD).")

	listingCmd.AddCommand(listingSetCmd)
	listingCmd.AddCommand(listingDeleteCmd)
	rootCmd.AddCommand(listingCmd)
}

var listingCmd = &cobra.Command{
	Use:   "listing",
	Short: "Manage the listings histories are fetched for.",
}

var listingSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Creates or updates a listing, its history is refreshed when the vehicle changed.",
	Run: func(cmd *cobra.Command, args []string) {
		res, err := historyClient().SetListing(cmd.Context(), &service.SetListingRequest{
			Id:                    listingId,
			Vin:                   vin,
			RegistrationNumber:    registrationNumber,
			FirstRegistrationDate: firstRegistrationDate,
		})
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("saved listing %d", res.Listing.Id)
		if res.History != nil {
			renderHistories([]service.OperatorView{*res.History})
		}
	},
}

var listingDeleteCmd = &cobra.Command{
	Use:   "delete <listing id>",
	Short: "Deletes a listing together with its history.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseListingId(args[0])
		_, err := historyClient().DeleteListing(cmd.Context(), &service.DeleteListingRequest{Id: id})
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("deleted listing %d", id)
	},
}
