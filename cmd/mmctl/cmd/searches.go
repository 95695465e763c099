package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func searchesCmd() *cobra.Command {
	searchesRoot := &cobra.Command{
		Use:   "searches",
		Short: "Manage tracked searches",
		Long: "Manage tracked searches scanned on a schedule. Queries are encrypted\n" +
			"server-side; listings and history are addressed by ID and fingerprint.",
	}

	searchesRoot.AddCommand(
		searchesListCmd(),
		searchesTrackCmd(),
		searchesEnableCmd(),
		searchesDisableCmd(),
		searchesRunsCmd(),
		searchesAlertsCmd(),
		searchesDeleteCmd(),
	)

	return searchesRoot
}

func searchesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tracked searches",
		Example: `  mmctl searches list
  mmctl searches list --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			searches, err := c.ListTrackedSearches(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(searches)
			}
			if len(searches) == 0 {
				fmt.Println("No tracked searches found.")
				return nil
			}
			return printTrackedSearchTable(searches)
		},
	}
}

func searchesTrackCmd() *cobra.Command {
	var (
		trackMinDiscount float64
		trackFrequency   int
	)

	cmd := &cobra.Command{
		Use:   "track <query>",
		Short: "Track a new search",
		Long: "Start tracking a search query. The server encrypts the query and scans\n" +
			"it on the given interval, alerting once per newly discovered deal.",
		Example: `  mmctl searches track "nintendo switch oled"
  mmctl searches track "dyson v15" --min-discount 0.3 --frequency 120`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var minDiscount *float64
			if cmd.Flags().Changed("min-discount") {
				minDiscount = &trackMinDiscount
			}
			var frequency *int
			if cmd.Flags().Changed("frequency") {
				frequency = &trackFrequency
			}

			c := newClient()
			created, err := c.CreateTrackedSearch(context.Background(), args[0], minDiscount, frequency)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(created)
			}
			fmt.Printf("Tracked search created: %s (fingerprint %s)\n", created.ID, created.FingerprintPrefix)
			return nil
		},
	}
	cmd.Flags().Float64Var(&trackMinDiscount, "min-discount", 0.2, "minimum discount fraction to alert on")
	cmd.Flags().IntVar(&trackFrequency, "frequency", 60, "scan interval in minutes")

	return cmd
}

func searchesEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "enable <id>",
		Short:   "Enable a tracked search",
		Example: `  mmctl searches enable abc123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSearchSetEnabled(args[0], true)
		},
	}
}

func searchesDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "disable <id>",
		Short:   "Disable a tracked search",
		Example: `  mmctl searches disable abc123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSearchSetEnabled(args[0], false)
		},
	}
}

func searchesRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs <id>",
		Short: "Show recent scan runs for a tracked search",
		Example: `  mmctl searches runs abc123
  mmctl searches runs abc123 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			runs, err := c.ListScanRuns(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Println("No scan runs found.")
				return nil
			}
			return printScanRunsTable(runs)
		},
	}
}

func searchesAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts <id>",
		Short: "Show recent alerts for a tracked search",
		Example: `  mmctl searches alerts abc123
  mmctl searches alerts abc123 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			events, err := c.ListAlertEvents(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(events)
			}
			if len(events) == 0 {
				fmt.Println("No alerts found.")
				return nil
			}
			return printAlertsTable(events)
		},
	}
}

func searchesDeleteCmd() *cobra.Command {
	var deleteAll bool

	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a tracked search",
		Example: `  mmctl searches delete abc123
  mmctl searches delete --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			if deleteAll {
				n, err := c.DeleteAllTrackedSearches(context.Background())
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %d tracked searches.\n", n)
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("provide a tracked search ID or --all")
			}
			if err := c.DeleteTrackedSearch(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Tracked search %s deleted.\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&deleteAll, "all", false, "delete every tracked search")

	return cmd
}

func runSearchSetEnabled(id string, enabled bool) error {
	c := newClient()
	if err := c.SetTrackedSearchEnabled(context.Background(), id, enabled); err != nil {
		return err
	}

	action := "enabled"
	if !enabled {
		action = "disabled"
	}
	fmt.Printf("Tracked search %s %s.\n", id, action)
	return nil
}
