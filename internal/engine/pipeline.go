// Package engine contains the scan orchestration: the single-attempt
// deal pipeline, the bounded retry agent on top of it, the tracked-scan
// state machine, and the cron scheduler driving scheduled scans.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sidpendyala/marketmaker/internal/ai"
	"github.com/sidpendyala/marketmaker/internal/marketplace"
	"github.com/sidpendyala/marketmaker/internal/metrics"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
	"github.com/sidpendyala/marketmaker/pkg/valuation"
)

var tracer = otel.Tracer("github.com/sidpendyala/marketmaker/internal/engine")

// ErrNoValuation means the sold-listing sample produced no usable fair
// value. It is a reportable outcome for an attempt, not an upstream
// failure; the agent keeps retrying past it.
var ErrNoValuation = errors.New("engine: no usable valuation")

// Condition-scrape fan-out bounds. Scheduled scans stay conservative to
// protect the shared API quota; interactive requests get a bit more.
const (
	ScrapeCapScheduled   = 5
	ScrapeCapInteractive = 10
)

// Result is the output of one pipeline attempt.
type Result struct {
	Query     string                 `json:"-"`
	Valuation domain.ValuationResult `json:"valuation"`
	Deals     []domain.Deal          `json:"deals"`
	Filtered  []domain.FilteredItem  `json:"filtered"`

	// BrandPrice is the manufacturer's current retail price, nil when
	// unknown or discontinued.
	BrandPrice *float64 `json:"brand_price,omitempty"`

	SuspiciousCount     int     `json:"suspicious_count"`
	ConditionEliminated int     `json:"condition_eliminated"`
	FilteredRatio       float64 `json:"filtered_ratio"`
}

// Pipeline runs a single fetch-value-filter-score attempt for a query.
type Pipeline struct {
	market  marketplace.Client
	advisor ai.Advisor
	log     *slog.Logger
}

// NewPipeline creates a Pipeline. advisor may be nil; brand prices then
// come back unknown.
func NewPipeline(market marketplace.Client, advisor ai.Advisor, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{market: market, advisor: advisor, log: log}
}

// Run executes one attempt: fetch sold and active listings and the
// brand price in parallel, derive a fair value, select and screen
// deals, enrich with flip economics, fill in missing condition ratings
// (at most scrapeCap concurrent scrapes), and apply condition scoring.
//
// A listing-fetch failure aborts the attempt. A brand-price failure is
// swallowed. When no usable fair value exists the attempt's Result is
// still returned alongside ErrNoValuation.
func (p *Pipeline) Run(ctx context.Context, query string, threshold float64, scrapeCap int) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.attempt")
	defer span.End()

	var (
		sold, active []domain.Listing
		brandPrice   *float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sold, err = p.market.SearchSold(gctx, query)
		if err != nil {
			return fmt.Errorf("fetching sold listings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		active, err = p.market.SearchActive(gctx, query)
		if err != nil {
			return fmt.Errorf("fetching active listings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if p.advisor == nil {
			return nil
		}
		price, err := p.advisor.BrandRetailPrice(gctx, query)
		if err != nil {
			p.log.Warn("brand price lookup failed", "error", err)
			return nil
		}
		brandPrice = price
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Query: query, BrandPrice: brandPrice}

	res.Valuation = valuation.FairValue(sold)
	metrics.ValuationSampleSize.Observe(float64(res.Valuation.SampleSize))
	if res.Valuation.FairValue <= 0 {
		return res, ErrNoValuation
	}

	candidates := valuation.FindDeals(active, res.Valuation.FairValue, threshold)
	kept, filtered := valuation.FilterSuspicious(candidates, res.Valuation.FairValue, query)
	for _, item := range filtered {
		metrics.ListingsFilteredTotal.WithLabelValues(string(item.FilterType)).Inc()
	}

	for i := range kept {
		est := valuation.FlipProfit(kept[i].Price, res.Valuation.FairValue)
		kept[i].FlipProfit = est.NetProfit
		kept[i].FlipROI = est.ROIPct
	}

	p.scrapeConditions(ctx, kept, scrapeCap)

	scored, eliminated := valuation.ApplyConditionScoring(kept)
	metrics.DealsFoundTotal.Add(float64(len(scored)))

	res.Deals = scored
	res.Filtered = filtered
	res.SuspiciousCount = len(filtered)
	res.ConditionEliminated = eliminated
	res.FilteredRatio = filteredRatio(len(filtered), eliminated, len(kept))

	span.SetAttributes(
		attribute.Int("valuation.sample_size", res.Valuation.SampleSize),
		attribute.Int("deals.found", len(scored)),
		attribute.Int("deals.filtered", len(filtered)),
	)
	return res, nil
}

// scrapeConditions fills in condition ratings for deals that arrived
// without one. Scrapes run concurrently up to cap; a failed or empty
// scrape leaves the rating unset and never aborts the batch.
func (p *Pipeline) scrapeConditions(ctx context.Context, deals []domain.Deal, limit int) {
	if limit <= 0 {
		return
	}

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup

	for i := range deals {
		if deals[i].ConditionRating != nil || deals[i].URL == "" {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(d *domain.Deal) {
			defer wg.Done()
			defer sem.Release(1)

			info, err := p.market.ScrapeCondition(ctx, d.URL)
			if err != nil {
				p.log.Warn("condition scrape failed", "url", d.URL, "error", err)
				return
			}
			if info == nil {
				return
			}
			rating := info.Rating
			d.ConditionRating = &rating
			d.ConditionLabel = info.Label
			d.ConditionNotes = info.Notes
		}(&deals[i])
	}

	wg.Wait()
}

// filteredRatio measures how much of the candidate pool the screens
// consumed: (suspicious + condition-eliminated) over the pool that
// entered the suspicious screen's output plus what it removed.
func filteredRatio(suspicious, eliminated, dealsBeforeCondition int) float64 {
	denom := dealsBeforeCondition + suspicious
	if denom == 0 {
		return 0
	}
	return round2(float64(suspicious+eliminated) / float64(denom))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
