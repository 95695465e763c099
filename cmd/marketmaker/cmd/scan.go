package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidpendyala/marketmaker/internal/engine"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan all due tracked searches once and exit",
	Long: "Runs a single scan pass over every enabled tracked search whose interval\n" +
		"has elapsed, then exits. Useful for cron-style deployments without the\n" +
		"built-in scheduler.",
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	scheduler, err := engine.NewScheduler(
		d.scanner,
		d.store,
		d.cfg.Schedule.ScanInterval,
		d.cfg.Schedule.CleanupInterval,
		d.cfg.Schedule.RetentionDays,
		d.log,
	)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}

	summaries, err := scheduler.ScanAllDue(ctx)
	if err != nil {
		return fmt.Errorf("scanning due searches: %w", err)
	}

	var failed int
	for i := range summaries {
		if summaries[i].Status == domain.ScanStatusFailed {
			failed++
		}
	}

	fmt.Printf("Scanned %d tracked searches (%d failed).\n", len(summaries), failed)
	return nil
}
