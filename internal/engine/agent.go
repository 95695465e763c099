package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sidpendyala/marketmaker/internal/ai"
	"github.com/sidpendyala/marketmaker/internal/crypto"
	"github.com/sidpendyala/marketmaker/internal/metrics"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
	"github.com/sidpendyala/marketmaker/pkg/valuation"
)

// Attempt strategies, in the order the agent tries them.
const (
	StrategyInitial            = "initial"
	StrategyAIRefinement       = "ai_refinement"
	StrategyHeuristic          = "heuristic_refinement"
	suffixSkipped              = "_skipped"
	maxAttempts                = 3
	refineReasonPoorResults    = "poor_results"
	poorFilteredRatioThreshold = 0.8
)

// TraceEntry records one agent attempt for debugging. The query never
// appears here, only its fingerprint prefix.
type TraceEntry struct {
	Attempt           int               `json:"attempt"`
	Strategy          string            `json:"strategy"`
	FingerprintPrefix string            `json:"fingerprint_prefix"`
	SampleSize        int               `json:"sample_size"`
	Confidence        domain.Confidence `json:"confidence,omitempty"`
	DealsFound        int               `json:"deals_found"`
	FilteredRatio     float64           `json:"filtered_ratio"`
	Error             string            `json:"error,omitempty"`
}

// Outcome is the agent's chosen result plus how it got there.
type Outcome struct {
	Result   *Result      `json:"result"`
	Strategy string       `json:"strategy"`
	Attempts int          `json:"attempts"`
	Trace    []TraceEntry `json:"trace"`
}

// Agent is the bounded retry loop around the pipeline. It runs up to
// three strictly sequential attempts, judging each one's quality and
// retrying with a refined query, and returns the best attempt seen.
type Agent struct {
	pipeline *Pipeline
	advisor  ai.Advisor
	codec    *crypto.Codec
	log      *slog.Logger
}

// NewAgent creates an Agent. advisor may be nil; the AI refinement
// attempt is then always skipped.
func NewAgent(pipeline *Pipeline, advisor ai.Advisor, codec *crypto.Codec, log *slog.Logger) *Agent {
	if log == nil {
		log = slog.Default()
	}
	return &Agent{pipeline: pipeline, advisor: advisor, codec: codec, log: log}
}

// Run drives the attempt loop for one query.
//
// Attempt 1 runs the query as given; if its quality is acceptable it
// wins outright. Otherwise attempt 2 asks the AI advisor for a refined
// query (recorded as skipped when the advisor has nothing new), and
// attempt 3 falls back to the stopword-stripping heuristic. The best
// attempt is tracked by the pair (sample size, deals found); strictly
// greater wins, ties keep the earlier attempt.
//
// An upstream listing-fetch error aborts the loop and is returned. A
// no-valuation attempt is poor but not fatal; if every attempt ends
// that way the first attempt's result is returned with ErrNoValuation.
func (a *Agent) Run(ctx context.Context, query string, threshold float64, scrapeCap int) (*Outcome, error) {
	outcome := &Outcome{}

	var (
		best         *Result
		bestStrategy string
		tried        = []string{normalizeForCompare(query)}
	)

	record := func(attempt int, strategy string, res *Result, err error) {
		entry := TraceEntry{
			Attempt:           attempt,
			Strategy:          strategy,
			FingerprintPrefix: a.fingerprintPrefix(query, res),
		}
		if res != nil {
			entry.SampleSize = res.Valuation.SampleSize
			entry.Confidence = res.Valuation.Confidence
			entry.DealsFound = len(res.Deals)
			entry.FilteredRatio = res.FilteredRatio
		}
		if err != nil {
			entry.Error = err.Error()
		}
		outcome.Trace = append(outcome.Trace, entry)
		a.log.Info("scan attempt finished",
			"attempt", attempt,
			"strategy", strategy,
			"query_fp", entry.FingerprintPrefix,
			"sample_size", entry.SampleSize,
			"deals_found", entry.DealsFound,
			"filtered_ratio", entry.FilteredRatio,
			"error", entry.Error,
		)
	}

	runAttempt := func(attempt int, strategy, q string) (*Result, error) {
		metrics.PipelineAttemptsTotal.WithLabelValues(strategy).Inc()
		res, err := a.pipeline.Run(ctx, q, threshold, scrapeCap)
		record(attempt, strategy, res, err)
		if err != nil {
			if errors.Is(err, ErrNoValuation) {
				// Poor but not fatal; keep retrying, never best.
				return res, nil
			}
			return nil, err
		}
		if betterThan(res, best) {
			best = res
			bestStrategy = strategy
		}
		return res, nil
	}

	// Attempt 1: the query as given.
	outcome.Attempts = 1
	first, err := runAttempt(1, StrategyInitial, query)
	if err != nil {
		outcome.Result = best
		return outcome, err
	}
	if !poorQuality(first) {
		return a.finish(outcome, best, bestStrategy)
	}

	// Attempt 2: AI refinement of the original query.
	outcome.Attempts = 2
	refined := a.refineWithAI(ctx, query)
	if refined == "" || contains(tried, normalizeForCompare(refined)) {
		record(2, StrategyAIRefinement+suffixSkipped, nil, nil)
	} else {
		tried = append(tried, normalizeForCompare(refined))
		if _, err := runAttempt(2, StrategyAIRefinement, refined); err != nil {
			outcome.Result = best
			return outcome, err
		}
	}
	if best != nil && !poorQuality(best) {
		return a.finish(outcome, best, bestStrategy)
	}

	// Attempt 3: heuristic refinement, no AI involved.
	outcome.Attempts = maxAttempts
	heuristic := valuation.HeuristicRefine(query)
	if heuristic == "" || contains(tried, normalizeForCompare(heuristic)) {
		record(3, StrategyHeuristic+suffixSkipped, nil, nil)
	} else {
		if _, err := runAttempt(3, StrategyHeuristic, heuristic); err != nil {
			outcome.Result = best
			return outcome, err
		}
	}

	if best == nil {
		// Every attempt ended without a usable valuation.
		outcome.Result = first
		outcome.Strategy = StrategyInitial
		return outcome, ErrNoValuation
	}
	return a.finish(outcome, best, bestStrategy)
}

func (a *Agent) finish(outcome *Outcome, best *Result, strategy string) (*Outcome, error) {
	outcome.Result = best
	outcome.Strategy = strategy
	return outcome, nil
}

// refineWithAI asks the advisor for a better query. Failures and
// non-answers collapse to "", which the caller records as a skip.
func (a *Agent) refineWithAI(ctx context.Context, query string) string {
	if a.advisor == nil {
		return ""
	}
	refined, err := a.advisor.RefineQuery(ctx, query, refineReasonPoorResults)
	if err != nil {
		a.log.Warn("query refinement failed", "error", err)
		return ""
	}
	return strings.TrimSpace(refined)
}

func (a *Agent) fingerprintPrefix(originalQuery string, res *Result) string {
	if a.codec == nil {
		return ""
	}
	q := originalQuery
	if res != nil && res.Query != "" {
		q = res.Query
	}
	return crypto.FingerprintPrefix(a.codec.Fingerprint(q))
}

// poorQuality is the retry trigger: too small a sample, a low-confidence
// empty result, or a candidate pool the screens mostly consumed.
func poorQuality(res *Result) bool {
	if res == nil {
		return true
	}
	if res.Valuation.SampleSize < 5 {
		return true
	}
	if res.Valuation.Confidence == domain.ConfidenceLow && len(res.Deals) == 0 {
		return true
	}
	return res.FilteredRatio > poorFilteredRatioThreshold
}

// betterThan compares attempts by (sample size, deals found),
// lexicographically. Strictly greater wins; ties keep the incumbent.
func betterThan(candidate, incumbent *Result) bool {
	if candidate == nil {
		return false
	}
	if incumbent == nil {
		return true
	}
	cs, is := candidate.Valuation.SampleSize, incumbent.Valuation.SampleSize
	if cs != is {
		return cs > is
	}
	return len(candidate.Deals) > len(incumbent.Deals)
}

func normalizeForCompare(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
