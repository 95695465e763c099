package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func jobsCmd() *cobra.Command {
	jobsRoot := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger server jobs",
		Long: "Trigger the server's scheduled jobs on demand. Requires the shared job\n" +
			"secret, read from MMCTL_JOB_SECRET or the job_secret config key.",
	}

	jobsRoot.AddCommand(
		jobsScanAllCmd(),
		jobsCleanupCmd(),
	)

	return jobsRoot
}

func jobsScanAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan-all",
		Short: "Scan all due tracked searches now",
		Example: `  mmctl jobs scan-all
  mmctl jobs scan-all --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			summaries, err := c.TriggerScanAll(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(summaries)
			}
			if len(summaries) == 0 {
				fmt.Println("No tracked searches were due.")
				return nil
			}
			return printScanSummariesTable(summaries)
		},
	}
}

func jobsCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "cleanup",
		Short:   "Run retention cleanup now",
		Example: `  mmctl jobs cleanup`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			if err := c.TriggerCleanup(context.Background()); err != nil {
				return err
			}
			fmt.Println("Cleanup complete.")
			return nil
		},
	}
}
