package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sidpendyala/marketmaker/internal/engine"
)

// JobRunner exposes the scheduler's jobs for manual triggering.
type JobRunner interface {
	ScanAllDue(ctx context.Context) ([]engine.ScanSummary, error)
	RunRetentionCleanup(ctx context.Context) error
}

// JobsHandler lets operators trigger scheduled jobs on demand. All
// endpoints require the shared job secret.
type JobsHandler struct {
	runner JobRunner
	secret string
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(runner JobRunner, secret string) *JobsHandler {
	return &JobsHandler{runner: runner, secret: secret}
}

// JobInput carries the shared secret every job trigger must present.
type JobInput struct {
	Secret string `header:"X-Job-Secret" doc:"Shared job secret"`
}

// ScanAllOutput summarizes a manually triggered scan batch.
type ScanAllOutput struct {
	Body struct {
		Scanned   int                  `json:"scanned"`
		Summaries []engine.ScanSummary `json:"summaries"`
	}
}

func (h *JobsHandler) authorize(input *JobInput) error {
	if h.secret == "" ||
		subtle.ConstantTimeCompare([]byte(input.Secret), []byte(h.secret)) != 1 {
		return huma.Error401Unauthorized("missing or invalid job secret")
	}
	return nil
}

// ScanAll runs every due tracked-search scan now.
func (h *JobsHandler) ScanAll(
	ctx context.Context,
	input *JobInput,
) (*ScanAllOutput, error) {
	if err := h.authorize(input); err != nil {
		return nil, err
	}

	summaries, err := h.runner.ScanAllDue(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("scan batch failed: " + err.Error())
	}
	if summaries == nil {
		summaries = []engine.ScanSummary{}
	}

	out := &ScanAllOutput{}
	out.Body.Scanned = len(summaries)
	out.Body.Summaries = summaries
	return out, nil
}

// CleanupOutput acknowledges a cleanup run.
type CleanupOutput struct {
	Body StatusResponse
}

// Cleanup runs the retention cleanup now.
func (h *JobsHandler) Cleanup(
	ctx context.Context,
	input *JobInput,
) (*CleanupOutput, error) {
	if err := h.authorize(input); err != nil {
		return nil, err
	}

	if err := h.runner.RunRetentionCleanup(ctx); err != nil {
		return nil, huma.Error500InternalServerError("cleanup failed: " + err.Error())
	}
	return &CleanupOutput{Body: StatusResponse{Status: "ok"}}, nil
}

// RegisterJobRoutes registers the manual job trigger endpoints.
func RegisterJobRoutes(api huma.API, h *JobsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "trigger-scan-all",
		Method:      http.MethodPost,
		Path:        "/jobs/scan-all",
		Summary:     "Scan all due tracked searches now",
		Tags:        []string{"jobs"},
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, h.ScanAll)

	huma.Register(api, huma.Operation{
		OperationID: "trigger-cleanup",
		Method:      http.MethodPost,
		Path:        "/jobs/cleanup",
		Summary:     "Run retention cleanup now",
		Tags:        []string{"jobs"},
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, h.Cleanup)
}
