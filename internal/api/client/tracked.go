package client

import (
	"context"

	"github.com/sidpendyala/marketmaker/internal/api/handlers"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// trackedSearchRequest contains only the fields the API accepts for
// create/update. Pointers distinguish "not set" from zero values on
// partial updates.
type trackedSearchRequest struct {
	Query            string   `json:"query,omitempty"`
	MinDiscount      *float64 `json:"min_discount,omitempty"`
	FrequencyMinutes *int     `json:"frequency_minutes,omitempty"`
	Enabled          *bool    `json:"enabled,omitempty"`
}

// ListTrackedSearches returns all tracked searches.
func (c *Client) ListTrackedSearches(ctx context.Context) ([]handlers.TrackedSearchView, error) {
	var searches []handlers.TrackedSearchView
	if err := c.get(ctx, "/api/v1/tracked-searches", &searches); err != nil {
		return nil, err
	}
	return searches, nil
}

// GetTrackedSearch returns a single tracked search by ID.
func (c *Client) GetTrackedSearch(ctx context.Context, id string) (*handlers.TrackedSearchView, error) {
	var ts handlers.TrackedSearchView
	if err := c.get(ctx, "/api/v1/tracked-searches/"+id, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

// CreateTrackedSearch starts tracking a query. The server encrypts the
// query; the returned view carries only its fingerprint prefix.
func (c *Client) CreateTrackedSearch(
	ctx context.Context,
	query string,
	minDiscount *float64,
	frequencyMinutes *int,
) (*handlers.TrackedSearchView, error) {
	var created handlers.TrackedSearchView
	req := trackedSearchRequest{
		Query:            query,
		MinDiscount:      minDiscount,
		FrequencyMinutes: frequencyMinutes,
	}
	if err := c.post(ctx, "/api/v1/tracked-searches", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTrackedSearch changes a tracked search's settings. Nil fields
// are left unchanged; the query itself is immutable.
func (c *Client) UpdateTrackedSearch(
	ctx context.Context,
	id string,
	minDiscount *float64,
	frequencyMinutes *int,
	enabled *bool,
) (*handlers.TrackedSearchView, error) {
	var updated handlers.TrackedSearchView
	req := trackedSearchRequest{
		MinDiscount:      minDiscount,
		FrequencyMinutes: frequencyMinutes,
		Enabled:          enabled,
	}
	if err := c.patch(ctx, "/api/v1/tracked-searches/"+id, req, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetTrackedSearchEnabled enables or disables a tracked search.
func (c *Client) SetTrackedSearchEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := c.UpdateTrackedSearch(ctx, id, nil, nil, &enabled)
	return err
}

// DeleteTrackedSearch deletes a tracked search and its history.
func (c *Client) DeleteTrackedSearch(ctx context.Context, id string) error {
	return c.del(ctx, "/api/v1/tracked-searches/"+id, nil)
}

// DeleteAllTrackedSearches deletes every tracked search and returns how
// many were removed.
func (c *Client) DeleteAllTrackedSearches(ctx context.Context) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.del(ctx, "/api/v1/tracked-searches", &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// ListScanRuns returns a tracked search's recent scan runs.
func (c *Client) ListScanRuns(ctx context.Context, id string) ([]domain.ScanRun, error) {
	var runs []domain.ScanRun
	if err := c.get(ctx, "/api/v1/tracked-searches/"+id+"/runs", &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListAlertEvents returns a tracked search's recent alerts.
func (c *Client) ListAlertEvents(ctx context.Context, id string) ([]domain.AlertEvent, error) {
	var events []domain.AlertEvent
	if err := c.get(ctx, "/api/v1/tracked-searches/"+id+"/alerts", &events); err != nil {
		return nil, err
	}
	return events, nil
}
