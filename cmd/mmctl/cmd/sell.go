package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func sellCmd() *cobra.Command {
	var (
		sellDetails   string
		sellCondition int
	)

	cmd := &cobra.Command{
		Use:   "sell <query>",
		Short: "Price an item for sale",
		Long: "Derives tiered list prices from sold comparables, scaled by the item's\n" +
			"condition, with marketplace fee and shipping deducted from each payout.",
		Example: `  mmctl sell "iphone 14 pro"
  mmctl sell "iphone 14 pro" --details "256gb deep purple" --condition 9
  mmctl sell "steam deck oled" --condition 6 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rating *int
			if cmd.Flags().Changed("condition") {
				rating = &sellCondition
			}

			c := newClient()
			resp, err := c.AdviseSell(context.Background(), args[0], sellDetails, rating)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(resp)
			}
			return printSellAdvice(resp)
		},
	}
	cmd.Flags().StringVar(&sellDetails, "details", "", "extra specifics (storage, color) to narrow comparables")
	cmd.Flags().IntVar(&sellCondition, "condition", 0, "item condition, 1 (parts) to 10 (mint)")

	return cmd
}
