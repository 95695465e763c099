package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sidpendyala/marketmaker/internal/api/handlers"
	"github.com/sidpendyala/marketmaker/internal/engine"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printOutcome(o *engine.Outcome) error {
	tw := newTabWriter(os.Stdout)

	r := o.Result
	tw.writef("Fair value:\t$%.2f (%d sold, %s confidence)\n",
		r.Valuation.FairValue, r.Valuation.SampleSize, r.Valuation.Confidence)
	if r.BrandPrice != nil {
		tw.writef("Brand new price:\t$%.2f\n", *r.BrandPrice)
	}
	tw.writef("Strategy:\t%s (%d attempts)\n", o.Strategy, o.Attempts)
	tw.writef("Filtered out:\t%d suspicious, %d poor condition\n",
		r.SuspiciousCount, r.ConditionEliminated)
	tw.writef("\n")

	if len(r.Deals) == 0 {
		tw.writef("No deals cleared the discount threshold.\n")
		return tw.finish()
	}

	tw.writef("TITLE\tPRICE\tDISCOUNT\tFLIP PROFIT\tCONDITION\tURL\n")
	for i := range r.Deals {
		d := &r.Deals[i]
		condition := "-"
		if d.ConditionRating != nil {
			condition = fmt.Sprintf("%d/10", *d.ConditionRating)
		}
		tw.writef("%s\t$%.2f\t%.1f%%\t$%.2f\t%s\t%s\n",
			truncate(d.Title, 45),
			d.Price,
			d.DiscountPct,
			d.FlipProfit,
			condition,
			d.URL,
		)
	}
	return tw.finish()
}

func printSellAdvice(resp *handlers.SellAdvisorResponse) error {
	tw := newTabWriter(os.Stdout)

	tw.writef("Fair value:\t$%.2f (%d sold, %s confidence)\n",
		resp.Valuation.FairValue, resp.Valuation.SampleSize, resp.Valuation.Confidence)
	tw.writef("Recommended tier:\t%s\n\n", resp.RecommendedTier)

	tw.writef("TIER\tLIST PRICE\tFEE\tSHIPPING\tNET PAYOUT\n")
	for i := range resp.Tiers {
		tier := &resp.Tiers[i]
		marker := ""
		if tier.Name == resp.RecommendedTier {
			marker = " *"
		}
		tw.writef("%s%s\t$%.2f\t$%.2f\t$%.2f\t$%.2f\n",
			tier.Name,
			marker,
			tier.ListPrice,
			tier.MarketplaceFee,
			tier.Shipping,
			tier.NetPayout,
		)
	}
	return tw.finish()
}

func printTrackedSearchTable(searches []handlers.TrackedSearchView) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tFINGERPRINT\tMIN DISCOUNT\tFREQUENCY\tENABLED\tLAST RUN\n")
	for i := range searches {
		s := &searches[i]
		lastRun := "-"
		if s.LastRunAt != nil {
			lastRun = s.LastRunAt.Format("2006-01-02 15:04:05")
		}
		tw.writef("%s\t%s\t%.0f%%\t%dm\t%v\t%s\n",
			s.ID,
			s.FingerprintPrefix,
			s.MinDiscount*100,
			s.FrequencyMinutes,
			s.Enabled,
			lastRun,
		)
	}
	return tw.finish()
}

func printScanRunsTable(runs []domain.ScanRun) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tSTATUS\tSTARTED\tFINISHED\tERROR\n")
	for i := range runs {
		r := &runs[i]
		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Format("2006-01-02 15:04:05")
		}
		tw.writef("%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			finished,
			truncate(r.ErrorText, 40),
		)
	}
	return tw.finish()
}

func printAlertsTable(events []domain.AlertEvent) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("WHEN\tTITLE\tPRICE\tDISCOUNT\tURL\n")
	for i := range events {
		var payload domain.AlertPayload
		if err := json.Unmarshal(events[i].Payload, &payload); err != nil {
			continue
		}
		tw.writef("%s\t%s\t$%.2f\t%.1f%%\t%s\n",
			events[i].CreatedAt.Format("2006-01-02 15:04:05"),
			truncate(payload.Title, 45),
			payload.Price,
			payload.DiscountPct,
			payload.URL,
		)
	}
	return tw.finish()
}

func printScanSummariesTable(summaries []engine.ScanSummary) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("SEARCH\tFINGERPRINT\tSTATUS\tDEALS\tNEW ALERTS\tERROR\n")
	for i := range summaries {
		s := &summaries[i]
		tw.writef("%s\t%s\t%s\t%d\t%d\t%s\n",
			s.TrackedSearchID,
			s.FingerprintPrefix,
			s.Status,
			s.DealsProcessed,
			s.NewAlerts,
			truncate(s.Error, 40),
		)
	}
	return tw.finish()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
