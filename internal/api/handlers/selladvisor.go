package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sidpendyala/marketmaker/internal/marketplace"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
	"github.com/sidpendyala/marketmaker/pkg/valuation"
)

// Sell tier labels, also used to pick the recommendation.
const (
	tierQuickSale   = "Quick Sale"
	tierCompetitive = "Competitive"
	tierMarketValue = "Market Value"
)

// SellAdvisorHandler prices an item the caller wants to sell.
type SellAdvisorHandler struct {
	market marketplace.Client
}

// NewSellAdvisorHandler creates a new SellAdvisorHandler.
func NewSellAdvisorHandler(market marketplace.Client) *SellAdvisorHandler {
	return &SellAdvisorHandler{market: market}
}

// SellAdvisorInput describes the item to price.
type SellAdvisorInput struct {
	Body struct {
		Query           string `json:"query" minLength:"1" doc:"Product to price, e.g. \"iphone 15 pro 128gb\""`
		Details         string `json:"details,omitempty" doc:"Extra specifics (storage, color) used to narrow comparables"`
		ConditionRating *int   `json:"condition_rating,omitempty" minimum:"1" maximum:"10" doc:"Item condition, 1 (parts) to 10 (mint)"`
	}
}

// SellAdvisorOutput is the pricing recommendation.
type SellAdvisorOutput struct {
	Body SellAdvisorResponse
}

// SellAdvisorResponse carries the tiers and the tier we recommend for
// the stated condition.
type SellAdvisorResponse struct {
	Valuation       domain.ValuationResult `json:"valuation"`
	Tiers           []domain.PriceTier     `json:"tiers"`
	RecommendedTier string                 `json:"recommended_tier"`
	UsedDetails     bool                   `json:"used_details"`
}

// Advise fetches sold comparables and derives tiered list prices. When
// the detailed query finds no comparables the base query is retried, so
// overly specific details degrade instead of failing.
func (h *SellAdvisorHandler) Advise(
	ctx context.Context,
	input *SellAdvisorInput,
) (*SellAdvisorOutput, error) {
	query := strings.TrimSpace(input.Body.Query)
	details := strings.TrimSpace(input.Body.Details)

	sold, usedDetails, err := h.fetchComparables(ctx, query, details)
	if err != nil {
		return nil, huma.Error502BadGateway("marketplace lookup failed: " + err.Error())
	}

	result := valuation.FairValue(sold)
	tiers := valuation.SellTiers(sold, input.Body.ConditionRating)
	if len(tiers) == 0 {
		return nil, huma.Error422UnprocessableEntity(
			"no sold listings found to price against; try a broader query")
	}

	return &SellAdvisorOutput{Body: SellAdvisorResponse{
		Valuation:       result,
		Tiers:           tiers,
		RecommendedTier: recommendTier(input.Body.ConditionRating),
		UsedDetails:     usedDetails,
	}}, nil
}

func (h *SellAdvisorHandler) fetchComparables(ctx context.Context, query, details string) ([]domain.Listing, bool, error) {
	if details != "" {
		sold, err := h.market.SearchSold(ctx, query+" "+details)
		if err != nil {
			return nil, false, err
		}
		if len(sold) > 0 {
			return sold, true, nil
		}
	}
	sold, err := h.market.SearchSold(ctx, query)
	return sold, false, err
}

// recommendTier picks a listing strategy for the stated condition:
// great items can ask market value, average ones should undercut a
// little, rough ones need to move fast. Unknown condition is treated as
// average.
func recommendTier(rating *int) string {
	r := 7
	if rating != nil {
		r = *rating
	}
	switch {
	case r >= 8:
		return tierMarketValue
	case r >= 5:
		return tierCompetitive
	default:
		return tierQuickSale
	}
}

// RegisterSellAdvisorRoutes registers sell-side pricing endpoints.
func RegisterSellAdvisorRoutes(api huma.API, h *SellAdvisorHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "sell-advisor",
		Method:      http.MethodPost,
		Path:        "/api/v1/sell-advisor",
		Summary:     "Price an item for sale",
		Description: "Derives tiered list prices from sold comparables, scaled by the item's condition, with fee and shipping deducted from each payout.",
		Tags:        []string{"pricing"},
		Errors: []int{
			http.StatusUnprocessableEntity,
			http.StatusBadGateway,
		},
	}, h.Advise)
}
