package client

import (
	"context"

	"github.com/sidpendyala/marketmaker/internal/engine"
)

// scanAllResponse mirrors the scan-all trigger response body.
type scanAllResponse struct {
	Scanned   int                  `json:"scanned"`
	Summaries []engine.ScanSummary `json:"summaries"`
}

// TriggerScanAll scans every due tracked search now and returns the
// per-search summaries.
func (c *Client) TriggerScanAll(ctx context.Context) ([]engine.ScanSummary, error) {
	var resp scanAllResponse
	if err := c.post(ctx, "/jobs/scan-all", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Summaries, nil
}

// TriggerCleanup runs the retention cleanup now.
func (c *Client) TriggerCleanup(ctx context.Context) error {
	return c.post(ctx, "/jobs/cleanup", nil, nil)
}
