package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sidpendyala/marketmaker/internal/crypto"
	"github.com/sidpendyala/marketmaker/internal/metrics"
	"github.com/sidpendyala/marketmaker/internal/notify"
	"github.com/sidpendyala/marketmaker/internal/store"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// ScanSummary is the per-tracked-search result of one scan, returned to
// schedulers and job handlers.
type ScanSummary struct {
	TrackedSearchID   string `json:"tracked_search_id"`
	FingerprintPrefix string `json:"fingerprint_prefix"`
	RunID             string `json:"run_id,omitempty"`
	Skipped           bool   `json:"skipped,omitempty"`
	Status            string `json:"status,omitempty"`
	DealsProcessed    int    `json:"deals_processed"`
	NewAlerts         int    `json:"new_alerts"`
	Error             string `json:"error,omitempty"`
}

// Scanner runs the tracked-scan state machine: one ScanRun per
// invocation, running to exactly one of success or failed, with a
// per-item ledger guaranteeing at most one alert ever per deal.
type Scanner struct {
	store    store.Store
	codec    *crypto.Codec
	agent    *Agent
	notifier notify.Notifier
	log      *slog.Logger

	nowFunc func() time.Time
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScannerNowFunc overrides the clock, for tests.
func WithScannerNowFunc(f func() time.Time) ScannerOption {
	return func(s *Scanner) {
		s.nowFunc = f
	}
}

// WithNotifier sets the alert delivery backend.
func WithNotifier(n notify.Notifier) ScannerOption {
	return func(s *Scanner) {
		s.notifier = n
	}
}

// NewScanner creates a Scanner.
func NewScanner(st store.Store, codec *crypto.Codec, agent *Agent, log *slog.Logger, opts ...ScannerOption) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	s := &Scanner{
		store:    st,
		codec:    codec,
		agent:    agent,
		notifier: notify.NewNoOpNotifier(log),
		log:      log,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs one scan for a tracked search. A disabled search
// short-circuits before any ScanRun row exists. Zero deals is a
// successful scan; only decryption failures and orchestrator errors
// fail the run. The returned summary always describes the outcome, and
// the error mirrors it for callers that propagate.
func (s *Scanner) Scan(ctx context.Context, ts *domain.TrackedSearch, scrapeCap int) (*ScanSummary, error) {
	ctx, span := tracer.Start(ctx, "scanner.scan")
	defer span.End()
	span.SetAttributes(attribute.String("tracked_search.id", ts.ID))

	fpPrefix := crypto.FingerprintPrefix(ts.QueryFingerprint)
	summary := &ScanSummary{
		TrackedSearchID:   ts.ID,
		FingerprintPrefix: fpPrefix,
	}
	log := s.log.With("tracked_search_id", ts.ID, "query_fp", fpPrefix)

	if !ts.Enabled {
		summary.Skipped = true
		log.Debug("tracked search disabled, skipping")
		return summary, nil
	}

	start := s.nowFunc()
	defer func() {
		metrics.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	run := &domain.ScanRun{TrackedSearchID: ts.ID}
	if err := s.store.CreateScanRun(ctx, run); err != nil {
		return s.fail(summary, log, "", err)
	}
	summary.RunID = run.ID
	log = log.With("run_id", run.ID)

	query, err := s.codec.Decrypt(ts.QueryCiphertext)
	if err != nil {
		return s.fail(summary, log, run.ID, err)
	}

	outcome, err := s.agent.Run(ctx, query, ts.MinDiscount, scrapeCap)
	if err != nil && !errors.Is(err, ErrNoValuation) {
		return s.fail(summary, log, run.ID, err)
	}

	stats := domain.ScanStats{}
	if outcome != nil && outcome.Result != nil {
		stats.SampleSize = outcome.Result.Valuation.SampleSize
		stats.Confidence = outcome.Result.Valuation.Confidence
		stats.DealsProcessed, stats.NewAlerts = s.processDeals(ctx, log, ts, outcome.Result.Deals)
	}
	summary.DealsProcessed = stats.DealsProcessed
	summary.NewAlerts = stats.NewAlerts

	statsJSON, merr := json.Marshal(stats)
	if merr != nil {
		statsJSON = nil
	}
	if err := s.store.FinishScanRun(ctx, run.ID, domain.ScanStatusSuccess, "", statsJSON); err != nil {
		return s.fail(summary, log, "", err)
	}
	if err := s.store.UpdateLastRun(ctx, ts.ID, s.nowFunc()); err != nil {
		log.Error("advancing last_run failed", "error", err)
	}

	summary.Status = domain.ScanStatusSuccess
	metrics.ScansTotal.WithLabelValues(domain.ScanStatusSuccess).Inc()
	log.Info("scan finished",
		"deals_processed", stats.DealsProcessed,
		"new_alerts", stats.NewAlerts,
		"sample_size", stats.SampleSize,
	)
	return summary, nil
}

// processDeals walks the chosen result's deals through the seen-item
// ledger. Every deal with a usable identity counts as processed; only
// deals that win the alerted_at latch fire an alert. Store failures on
// one deal are logged and do not stop the rest.
func (s *Scanner) processDeals(ctx context.Context, log *slog.Logger, ts *domain.TrackedSearch, deals []domain.Deal) (processed, newAlerts int) {
	now := s.nowFunc()

	for i := range deals {
		deal := &deals[i]
		if deal.Price <= 0 {
			continue
		}
		key := domain.ItemKey(deal.URL, deal.Title, deal.Price, deal.Image)
		if key == "" {
			continue
		}

		_, err := s.store.GetSeenItem(ctx, ts.ID, key)
		switch {
		case errors.Is(err, store.ErrNotFound):
			item := &domain.SeenItem{
				TrackedSearchID: ts.ID,
				ItemKey:         key,
				URL:             deal.URL,
				Title:           deal.Title,
				LastPrice:       deal.Price,
				FirstSeenAt:     now,
				LastSeenAt:      now,
			}
			if err := s.store.InsertSeenItem(ctx, item); err != nil {
				log.Error("inserting seen item failed", "item_key", key, "error", err)
				continue
			}
		case err != nil:
			log.Error("looking up seen item failed", "item_key", key, "error", err)
			continue
		default:
			if err := s.store.TouchSeenItem(ctx, ts.ID, key, deal.URL, deal.Title, deal.Price, now); err != nil {
				log.Error("touching seen item failed", "item_key", key, "error", err)
				continue
			}
		}
		processed++

		won, err := s.store.MarkAlerted(ctx, ts.ID, key, now)
		if err != nil {
			log.Error("marking alerted failed", "item_key", key, "error", err)
			continue
		}
		if !won {
			continue
		}

		alert := domain.AlertPayload{
			Title:       deal.Title,
			Price:       deal.Price,
			URL:         deal.URL,
			Image:       deal.Image,
			DiscountPct: deal.DiscountPct,
			FairValue:   deal.FairValue,
		}
		payload, err := json.Marshal(alert)
		if err != nil {
			log.Error("encoding alert payload failed", "item_key", key, "error", err)
			continue
		}
		ev := &domain.AlertEvent{
			TrackedSearchID: ts.ID,
			ItemKey:         key,
			Payload:         payload,
		}
		if err := s.store.InsertAlertEvent(ctx, ev); err != nil {
			log.Error("inserting alert event failed", "item_key", key, "error", err)
			continue
		}
		newAlerts++
		metrics.AlertsFiredTotal.Inc()

		// Delivery is best-effort; the event row is already the source
		// of truth for exactly-once.
		fpPrefix := crypto.FingerprintPrefix(ts.QueryFingerprint)
		if err := s.notifier.SendDealAlert(ctx, fpPrefix, &alert); err != nil {
			log.Error("delivering alert failed", "item_key", key, "error", err)
		}
	}
	return processed, newAlerts
}

// fail finalizes the run (when one exists) as failed and returns the
// error. FinishScanRun's IS NULL guard means a run that already reached
// a terminal state stays there.
func (s *Scanner) fail(summary *ScanSummary, log *slog.Logger, runID string, cause error) (*ScanSummary, error) {
	if runID != "" {
		// A fresh context so a canceled scan still records its failure.
		if err := s.store.FinishScanRun(context.Background(), runID, domain.ScanStatusFailed, cause.Error(), nil); err != nil {
			log.Error("finalizing failed run failed", "error", err)
		}
	}
	summary.Status = domain.ScanStatusFailed
	summary.Error = cause.Error()
	metrics.ScansTotal.WithLabelValues(domain.ScanStatusFailed).Inc()
	log.Error("scan failed", "error", cause)
	return summary, cause
}
