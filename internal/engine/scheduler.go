package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"github.com/sidpendyala/marketmaker/internal/store"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// maxConcurrentScans bounds simultaneous scheduled scans so one batch
// cannot exhaust the marketplace API quota.
const maxConcurrentScans = 2

// Scheduler runs due tracked-search scans and retention cleanup on a
// cron schedule.
type Scheduler struct {
	cron          *cron.Cron
	scanner       *Scanner
	store         store.Store
	retentionDays int
	log           *slog.Logger
}

// NewScheduler creates a Scheduler firing scans every scanInterval and
// cleanup every cleanupInterval. retentionDays <= 0 disables cleanup.
func NewScheduler(
	scanner *Scanner,
	st store.Store,
	scanInterval time.Duration,
	cleanupInterval time.Duration,
	retentionDays int,
	log *slog.Logger,
) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:          c,
		scanner:       scanner,
		store:         st,
		retentionDays: retentionDays,
		log:           log,
	}

	if _, err := c.AddFunc("@every "+scanInterval.String(), s.runDueScans); err != nil {
		return nil, err
	}

	if retentionDays > 0 {
		if _, err := c.AddFunc("@every "+cleanupInterval.String(), s.runCleanup); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runDueScans() {
	summaries, err := s.ScanAllDue(context.Background())
	if err != nil {
		s.log.Error("scheduled scan batch failed", "error", err)
		return
	}
	var failed int
	for _, sum := range summaries {
		if sum.Status == domain.ScanStatusFailed {
			failed++
		}
	}
	s.log.Info("scheduled scan batch finished",
		"scanned", len(summaries),
		"failed", failed,
	)
}

func (s *Scheduler) runCleanup() {
	if err := s.RunRetentionCleanup(context.Background()); err != nil {
		s.log.Error("retention cleanup failed", "error", err)
	}
}

// ScanAllDue scans every tracked search whose schedule has elapsed, at
// most maxConcurrentScans at a time. Each scan fails independently; the
// batch never aborts because one search errored. Disabled or not-yet-due
// searches are not scanned and produce no summary.
func (s *Scheduler) ScanAllDue(ctx context.Context) ([]ScanSummary, error) {
	searches, err := s.store.ListTrackedSearches(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tracked searches: %w", err)
	}

	now := time.Now()
	sem := semaphore.NewWeighted(maxConcurrentScans)

	var (
		mu        sync.Mutex
		summaries []ScanSummary
		wg        sync.WaitGroup
	)

	for i := range searches {
		ts := searches[i]
		if !ts.Due(now) {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			summary, err := s.scanner.Scan(ctx, &ts, ScrapeCapScheduled)
			if err != nil {
				// Already reflected in the summary; the batch goes on.
				s.log.Warn("tracked search scan failed",
					"tracked_search_id", ts.ID,
					"error", err,
				)
			}

			mu.Lock()
			summaries = append(summaries, *summary)
			mu.Unlock()
		}()
	}

	wg.Wait()
	return summaries, nil
}

// RunRetentionCleanup deletes scan runs and alert events older than the
// retention window.
func (s *Scheduler) RunRetentionCleanup(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	runs, err := s.store.DeleteScanRunsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("deleting old scan runs: %w", err)
	}
	events, err := s.store.DeleteAlertEventsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("deleting old alert events: %w", err)
	}

	s.log.Info("retention cleanup finished",
		"cutoff", cutoff.Format(time.RFC3339),
		"scan_runs_deleted", runs,
		"alert_events_deleted", events,
	)
	return nil
}
