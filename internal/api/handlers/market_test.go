package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidpendyala/marketmaker/internal/api/handlers"
	"github.com/sidpendyala/marketmaker/internal/engine"
	"github.com/sidpendyala/marketmaker/internal/marketplace"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// mockDealFinder is a test double for DealFinder.
type mockDealFinder struct {
	outcome *engine.Outcome
	err     error

	gotQuery     string
	gotThreshold float64
}

func (m *mockDealFinder) Run(_ context.Context, query string, threshold float64, _ int) (*engine.Outcome, error) {
	m.gotQuery = query
	m.gotThreshold = threshold
	return m.outcome, m.err
}

func sampleOutcome() *engine.Outcome {
	return &engine.Outcome{
		Result: &engine.Result{
			Valuation: domain.ValuationResult{
				FairValue:  100,
				SampleSize: 12,
				Confidence: domain.ConfidenceMedium,
			},
			Deals: []domain.Deal{{
				Listing:     domain.Listing{Title: "Apple iPhone 15 Pro", Price: 70, URL: "https://x/1"},
				DiscountPct: 30,
				FairValue:   100,
			}},
		},
		Strategy: engine.StrategyInitial,
		Attempts: 1,
	}
}

func TestFindDeals_Success(t *testing.T) {
	t.Parallel()

	finder := &mockDealFinder{outcome: sampleOutcome()}
	h := handlers.NewMarketMakerHandler(finder)

	_, api := humatest.New(t)
	handlers.RegisterMarketMakerRoutes(api, h)

	resp := api.Get("/api/v1/market-maker?query=iphone+15+pro")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Apple iPhone 15 Pro")
	assert.Equal(t, "iphone 15 pro", finder.gotQuery)
	assert.Equal(t, 0.20, finder.gotThreshold, "default threshold applies")
}

func TestFindDeals_CustomThreshold(t *testing.T) {
	t.Parallel()

	finder := &mockDealFinder{outcome: sampleOutcome()}
	h := handlers.NewMarketMakerHandler(finder)

	_, api := humatest.New(t)
	handlers.RegisterMarketMakerRoutes(api, h)

	resp := api.Get("/api/v1/market-maker?query=iphone&min_discount=0.35")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 0.35, finder.gotThreshold)
}

func TestFindDeals_MissingQuery(t *testing.T) {
	t.Parallel()

	h := handlers.NewMarketMakerHandler(&mockDealFinder{})

	_, api := humatest.New(t)
	handlers.RegisterMarketMakerRoutes(api, h)

	resp := api.Get("/api/v1/market-maker")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestFindDeals_NoValuation(t *testing.T) {
	t.Parallel()

	h := handlers.NewMarketMakerHandler(&mockDealFinder{err: engine.ErrNoValuation})

	_, api := humatest.New(t)
	handlers.RegisterMarketMakerRoutes(api, h)

	resp := api.Get("/api/v1/market-maker?query=obscure+thing")
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Body.String(), "fair value")
}

func TestFindDeals_UpstreamError(t *testing.T) {
	t.Parallel()

	h := handlers.NewMarketMakerHandler(&mockDealFinder{err: marketplace.ErrUpstream})

	_, api := humatest.New(t)
	handlers.RegisterMarketMakerRoutes(api, h)

	resp := api.Get("/api/v1/market-maker?query=iphone")
	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestFindDeals_NotConfigured(t *testing.T) {
	t.Parallel()

	h := handlers.NewMarketMakerHandler(&mockDealFinder{err: marketplace.ErrNotConfigured})

	_, api := humatest.New(t)
	handlers.RegisterMarketMakerRoutes(api, h)

	resp := api.Get("/api/v1/market-maker?query=iphone")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
