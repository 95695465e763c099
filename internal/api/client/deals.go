package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sidpendyala/marketmaker/internal/api/handlers"
	"github.com/sidpendyala/marketmaker/internal/engine"
)

// FindDeals runs an interactive deal discovery pass for the query. A
// zero minDiscount lets the server apply its default threshold.
func (c *Client) FindDeals(ctx context.Context, query string, minDiscount float64) (*engine.Outcome, error) {
	params := url.Values{}
	params.Set("query", query)
	if minDiscount > 0 {
		params.Set("min_discount", fmt.Sprintf("%g", minDiscount))
	}

	var outcome engine.Outcome
	if err := c.get(ctx, "/api/v1/market-maker?"+params.Encode(), &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// sellAdvisorRequest describes the item to price.
type sellAdvisorRequest struct {
	Query           string `json:"query"`
	Details         string `json:"details,omitempty"`
	ConditionRating *int   `json:"condition_rating,omitempty"`
}

// AdviseSell prices an item for sale from sold comparables.
func (c *Client) AdviseSell(
	ctx context.Context,
	query, details string,
	conditionRating *int,
) (*handlers.SellAdvisorResponse, error) {
	req := sellAdvisorRequest{
		Query:           query,
		Details:         details,
		ConditionRating: conditionRating,
	}

	var resp handlers.SellAdvisorResponse
	if err := c.post(ctx, "/api/v1/sell-advisor", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
