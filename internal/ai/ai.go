// Package ai is the optional AI collaborator: query refinement when a
// scan attempt returns poor results, and manufacturer retail price
// lookups. Everything here degrades gracefully, the scan pipeline works
// without it.
package ai

import "context"

// Advisor is the collaborator contract consumed by the scan engine.
type Advisor interface {
	// RefineQuery rewrites a search query that produced poor results.
	// reason is a short machine tag like "poor_results" giving the
	// model context. Returns "" when the model has no improvement to
	// offer.
	RefineQuery(ctx context.Context, query, reason string) (string, error)

	// BrandRetailPrice returns the manufacturer's current retail price
	// for the queried product, or nil when the product is discontinued
	// or the price is unknown.
	BrandRetailPrice(ctx context.Context, query string) (*float64, error)
}
