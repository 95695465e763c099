package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidpendyala/marketmaker/internal/marketplace"
	"github.com/sidpendyala/marketmaker/pkg/logger"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

const testQuery = "iphone 15 pro"

func soldAround100() []domain.Listing {
	prices := []float64{100, 102, 98, 101, 99, 100, 103, 97, 100, 100}
	listings := make([]domain.Listing, len(prices))
	for i, p := range prices {
		listings[i] = domain.Listing{
			Title:  "Apple iPhone 15 Pro 128GB",
			Price:  p,
			Status: domain.StatusSold,
		}
	}
	return listings
}

func floatp(v float64) *float64 { return &v }

func TestPipelineRun(t *testing.T) {
	t.Parallel()

	market := newFakeMarket()
	market.sold[testQuery] = soldAround100()
	market.active[testQuery] = []domain.Listing{
		{Title: "Apple iPhone 15 Pro 128GB Unlocked", Price: 70, URL: "https://x/1", Status: domain.StatusActive},
		{Title: "iPhone 15 Pro BOX ONLY", Price: 25, URL: "https://x/2", Status: domain.StatusActive},
		{Title: "Apple iPhone 15 Pro Max", Price: 85, URL: "https://x/3", Status: domain.StatusActive},
	}
	market.conditions["https://x/1"] = &domain.ConditionInfo{Rating: 9, Label: "Excellent"}

	advisor := &fakeAdvisor{brandPrice: floatp(999)}
	p := NewPipeline(market, advisor, logger.Nop())

	res, err := p.Run(context.Background(), testQuery, 0.20, ScrapeCapInteractive)
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.Valuation.FairValue)
	assert.Equal(t, 10, res.Valuation.SampleSize)
	assert.Equal(t, domain.ConfidenceMedium, res.Valuation.Confidence)
	require.NotNil(t, res.BrandPrice)
	assert.Equal(t, 999.0, *res.BrandPrice)

	// The 85 listing misses the threshold, the box-only one is screened.
	require.Len(t, res.Deals, 1)
	deal := res.Deals[0]
	assert.Equal(t, 30.0, deal.DiscountPct)
	assert.Equal(t, 8.45, deal.FlipProfit)
	assert.Equal(t, 10.8, deal.FlipROI)

	// The scraped rating upgrades the deal to a top pick.
	require.NotNil(t, deal.ConditionRating)
	assert.Equal(t, 9, *deal.ConditionRating)
	assert.Equal(t, domain.FlagTopPick, deal.ConditionFlag)
	assert.Equal(t, 34.5, deal.ConditionAdjustedDiscount)

	require.Len(t, res.Filtered, 1)
	assert.Equal(t, domain.FilterScam, res.Filtered[0].FilterType)
	assert.Equal(t, 1, res.SuspiciousCount)
	assert.Equal(t, 0, res.ConditionEliminated)
	assert.Equal(t, 0.5, res.FilteredRatio)
}

func TestPipelineRun_ListingFetchErrorAborts(t *testing.T) {
	t.Parallel()

	market := newFakeMarket()
	market.soldErr = marketplace.ErrUpstream
	p := NewPipeline(market, nil, logger.Nop())

	_, err := p.Run(context.Background(), testQuery, 0.20, ScrapeCapInteractive)
	assert.ErrorIs(t, err, marketplace.ErrUpstream)
}

func TestPipelineRun_BrandPriceFailureSwallowed(t *testing.T) {
	t.Parallel()

	market := newFakeMarket()
	market.sold[testQuery] = soldAround100()
	advisor := &fakeAdvisor{brandErr: assert.AnError}
	p := NewPipeline(market, advisor, logger.Nop())

	res, err := p.Run(context.Background(), testQuery, 0.20, ScrapeCapInteractive)
	require.NoError(t, err)
	assert.Nil(t, res.BrandPrice)
	assert.Equal(t, 100.0, res.Valuation.FairValue)
}

func TestPipelineRun_NoValuation(t *testing.T) {
	t.Parallel()

	market := newFakeMarket()
	p := NewPipeline(market, nil, logger.Nop())

	res, err := p.Run(context.Background(), testQuery, 0.20, ScrapeCapInteractive)
	require.ErrorIs(t, err, ErrNoValuation)
	require.NotNil(t, res, "the attempt's result is still reportable")
	assert.Zero(t, res.Valuation.SampleSize)
	assert.Empty(t, res.Deals)
}

func TestPipelineRun_ScrapeFailureLeavesRatingUnset(t *testing.T) {
	t.Parallel()

	market := newFakeMarket()
	market.sold[testQuery] = soldAround100()
	market.active[testQuery] = []domain.Listing{
		{Title: "Apple iPhone 15 Pro 128GB", Price: 70, URL: "https://x/1", Status: domain.StatusActive},
	}
	market.scrapeErr = assert.AnError
	p := NewPipeline(market, nil, logger.Nop())

	res, err := p.Run(context.Background(), testQuery, 0.20, ScrapeCapInteractive)
	require.NoError(t, err)
	require.Len(t, res.Deals, 1)
	assert.Nil(t, res.Deals[0].ConditionRating)
	assert.Equal(t, domain.FlagNone, res.Deals[0].ConditionFlag)
	assert.Equal(t, 30.0, res.Deals[0].ConditionAdjustedDiscount)
}

func TestPipelineRun_SkipsScrapeWhenRatingKnown(t *testing.T) {
	t.Parallel()

	rating := 7
	market := newFakeMarket()
	market.sold[testQuery] = soldAround100()
	market.active[testQuery] = []domain.Listing{
		{Title: "Apple iPhone 15 Pro 128GB", Price: 70, URL: "https://x/1", Status: domain.StatusActive, ConditionRating: &rating},
	}
	p := NewPipeline(market, nil, logger.Nop())

	res, err := p.Run(context.Background(), testQuery, 0.20, ScrapeCapInteractive)
	require.NoError(t, err)
	require.Len(t, res.Deals, 1)
	assert.Zero(t, market.scrapeCalls)
	require.NotNil(t, res.Deals[0].ConditionRating)
	assert.Equal(t, 7, *res.Deals[0].ConditionRating)
}
