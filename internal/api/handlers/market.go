package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sidpendyala/marketmaker/internal/engine"
	"github.com/sidpendyala/marketmaker/internal/marketplace"
	"github.com/sidpendyala/marketmaker/pkg/valuation"
)

// DealFinder runs the agentic deal pipeline for an interactive request.
type DealFinder interface {
	Run(ctx context.Context, query string, threshold float64, scrapeCap int) (*engine.Outcome, error)
}

// MarketMakerHandler handles interactive deal discovery requests.
type MarketMakerHandler struct {
	finder DealFinder
}

// NewMarketMakerHandler creates a new MarketMakerHandler.
func NewMarketMakerHandler(finder DealFinder) *MarketMakerHandler {
	return &MarketMakerHandler{finder: finder}
}

// MarketMakerInput is the request for a deal discovery run.
type MarketMakerInput struct {
	Query       string  `query:"query" required:"true" minLength:"1" doc:"Product search query"`
	MinDiscount float64 `query:"min_discount" minimum:"0" maximum:"1" doc:"Minimum discount fraction below fair value (default 0.20)"`
}

// MarketMakerOutput is the response for a deal discovery run.
type MarketMakerOutput struct {
	Body *engine.Outcome
}

// FindDeals runs the full pipeline for the given query and returns the
// best attempt.
func (h *MarketMakerHandler) FindDeals(
	ctx context.Context,
	input *MarketMakerInput,
) (*MarketMakerOutput, error) {
	threshold := input.MinDiscount
	if threshold == 0 {
		threshold = valuation.DefaultThreshold
	}

	outcome, err := h.finder.Run(ctx, input.Query, threshold, engine.ScrapeCapInteractive)
	switch {
	case errors.Is(err, engine.ErrNoValuation):
		return nil, huma.Error422UnprocessableEntity(
			"no sold listings found to establish a fair value; try a broader query")
	case errors.Is(err, marketplace.ErrNotConfigured):
		return nil, huma.Error503ServiceUnavailable("marketplace API is not configured")
	case err != nil:
		return nil, huma.Error502BadGateway("marketplace lookup failed: " + err.Error())
	}

	return &MarketMakerOutput{Body: outcome}, nil
}

// RegisterMarketMakerRoutes registers deal discovery endpoints.
func RegisterMarketMakerRoutes(api huma.API, h *MarketMakerHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "market-maker",
		Method:      http.MethodGet,
		Path:        "/api/v1/market-maker",
		Summary:     "Find undervalued listings",
		Description: "Values the product from sold listings, then returns live listings priced below fair value, screened for scams and mismatches.",
		Tags:        []string{"deals"},
		Errors: []int{
			http.StatusUnprocessableEntity,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
		},
	}, h.FindDeals)
}
