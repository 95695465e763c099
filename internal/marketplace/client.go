// Package marketplace provides the listing data source for scans,
// abstracted behind an interface for testability. The production
// implementation talks to a RapidAPI proxy in front of eBay search.
package marketplace

import (
	"context"
	"errors"

	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// Sentinel errors.
var (
	// ErrNotConfigured means the API key is missing or a placeholder.
	ErrNotConfigured = errors.New("marketplace: API key not configured")

	// ErrUpstream wraps any failure of the upstream listing API. The
	// pipeline treats it as a terminal condition for the attempt.
	ErrUpstream = errors.New("marketplace: upstream request failed")
)

// Client is the listing data source consumed by the scan pipeline.
type Client interface {
	// SearchSold fetches recently sold listings for the query. Listings
	// with unparseable or zero prices are dropped.
	SearchSold(ctx context.Context, query string) ([]domain.Listing, error)

	// SearchActive fetches purchasable Buy-It-Now listings for the
	// query, cheapest first. Same price filtering as SearchSold.
	SearchActive(ctx context.Context, query string) ([]domain.Listing, error)

	// ScrapeCondition fetches one listing page and extracts the seller
	// stated condition. Returns (nil, nil) when the page carries no
	// usable condition.
	ScrapeCondition(ctx context.Context, listingURL string) (*domain.ConditionInfo, error)
}
