package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func findCmd() *cobra.Command {
	var minDiscount float64

	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Find undervalued listings for a product",
		Long: "Values the product from sold listings, then returns live listings priced\n" +
			"below fair value, screened for scams and mismatches.",
		Example: `  mmctl find "iphone 15 pro 128gb"
  mmctl find "ps5 slim" --min-discount 0.3
  mmctl find "herman miller aeron" --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			outcome, err := c.FindDeals(context.Background(), args[0], minDiscount)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(outcome)
			}
			if outcome.Result == nil {
				fmt.Println("No usable valuation found.")
				return nil
			}
			return printOutcome(outcome)
		},
	}
	cmd.Flags().Float64Var(&minDiscount, "min-discount", 0,
		"minimum discount fraction below fair value (default: server default)")

	return cmd
}
