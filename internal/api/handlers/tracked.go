package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sidpendyala/marketmaker/internal/crypto"
	"github.com/sidpendyala/marketmaker/internal/store"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
	"github.com/sidpendyala/marketmaker/pkg/valuation"
)

const defaultFrequencyMinutes = 60

// TrackedSearchProvider defines the store methods required by the
// tracked-search handler.
type TrackedSearchProvider interface {
	CreateTrackedSearch(ctx context.Context, ts *domain.TrackedSearch) error
	GetTrackedSearch(ctx context.Context, id string) (*domain.TrackedSearch, error)
	GetTrackedSearchByFingerprint(ctx context.Context, fingerprint string) (*domain.TrackedSearch, error)
	ListTrackedSearches(ctx context.Context) ([]domain.TrackedSearch, error)
	UpdateTrackedSearch(ctx context.Context, ts *domain.TrackedSearch) error
	DeleteTrackedSearch(ctx context.Context, id string) error
	DeleteAllTrackedSearches(ctx context.Context) (int64, error)
	ListScanRuns(ctx context.Context, trackedSearchID string, limit int) ([]domain.ScanRun, error)
	ListAlertEvents(ctx context.Context, trackedSearchID string, limit int) ([]domain.AlertEvent, error)
}

// TrackedSearchHandler handles tracked-search CRUD. The plaintext query
// exists only inside the create request; responses carry a fingerprint
// prefix instead.
type TrackedSearchHandler struct {
	store TrackedSearchProvider
	codec *crypto.Codec
}

// NewTrackedSearchHandler creates a new TrackedSearchHandler.
func NewTrackedSearchHandler(s TrackedSearchProvider, codec *crypto.Codec) *TrackedSearchHandler {
	return &TrackedSearchHandler{store: s, codec: codec}
}

// TrackedSearchView is the API shape of a tracked search. The query
// itself never appears.
type TrackedSearchView struct {
	ID                string     `json:"id"`
	FingerprintPrefix string     `json:"fingerprint_prefix"`
	MinDiscount       float64    `json:"min_discount"`
	FrequencyMinutes  int        `json:"frequency_minutes"`
	Enabled           bool       `json:"enabled"`
	LastRunAt         *time.Time `json:"last_run_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toView(ts *domain.TrackedSearch) TrackedSearchView {
	return TrackedSearchView{
		ID:                ts.ID,
		FingerprintPrefix: crypto.FingerprintPrefix(ts.QueryFingerprint),
		MinDiscount:       ts.MinDiscount,
		FrequencyMinutes:  ts.FrequencyMinutes,
		Enabled:           ts.Enabled,
		LastRunAt:         ts.LastRunAt,
		CreatedAt:         ts.CreatedAt,
	}
}

// CreateTrackedSearchInput is the request to start tracking a query.
type CreateTrackedSearchInput struct {
	Body struct {
		Query            string   `json:"query" minLength:"1" doc:"Search query to scan on a schedule"`
		MinDiscount      *float64 `json:"min_discount,omitempty" minimum:"0" maximum:"1" doc:"Minimum discount fraction to alert on (default 0.20)"`
		FrequencyMinutes *int     `json:"frequency_minutes,omitempty" minimum:"1" maximum:"10080" doc:"Scan interval in minutes, up to one week (default 60)"`
	}
}

// TrackedSearchOutput wraps a single tracked search view.
type TrackedSearchOutput struct {
	Body TrackedSearchView
}

// ListTrackedSearchesOutput wraps the full list.
type ListTrackedSearchesOutput struct {
	Body []TrackedSearchView
}

// TrackedSearchIDInput addresses one tracked search.
type TrackedSearchIDInput struct {
	ID string `path:"id" doc:"Tracked search UUID"`
}

// Create encrypts and stores a new tracked search.
func (h *TrackedSearchHandler) Create(
	ctx context.Context,
	input *CreateTrackedSearchInput,
) (*TrackedSearchOutput, error) {
	query := strings.TrimSpace(input.Body.Query)
	if query == "" {
		return nil, huma.Error422UnprocessableEntity("query must not be blank")
	}

	fingerprint := h.codec.Fingerprint(query)
	if _, err := h.store.GetTrackedSearchByFingerprint(ctx, fingerprint); err == nil {
		return nil, huma.Error409Conflict("this query is already tracked")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, huma.Error500InternalServerError("checking for duplicates failed: " + err.Error())
	}

	ciphertext, err := h.codec.Encrypt(query)
	if err != nil {
		return nil, huma.Error500InternalServerError("encrypting query failed: " + err.Error())
	}

	ts := &domain.TrackedSearch{
		QueryCiphertext:  ciphertext,
		QueryFingerprint: fingerprint,
		MinDiscount:      valuation.DefaultThreshold,
		FrequencyMinutes: defaultFrequencyMinutes,
		Enabled:          true,
	}
	if input.Body.MinDiscount != nil {
		ts.MinDiscount = *input.Body.MinDiscount
	}
	if input.Body.FrequencyMinutes != nil {
		ts.FrequencyMinutes = *input.Body.FrequencyMinutes
	}

	if err := h.store.CreateTrackedSearch(ctx, ts); err != nil {
		return nil, huma.Error500InternalServerError("creating tracked search failed: " + err.Error())
	}

	return &TrackedSearchOutput{Body: toView(ts)}, nil
}

// List returns every tracked search.
func (h *TrackedSearchHandler) List(
	ctx context.Context,
	_ *struct{},
) (*ListTrackedSearchesOutput, error) {
	searches, err := h.store.ListTrackedSearches(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing tracked searches failed: " + err.Error())
	}

	views := make([]TrackedSearchView, 0, len(searches))
	for i := range searches {
		views = append(views, toView(&searches[i]))
	}
	return &ListTrackedSearchesOutput{Body: views}, nil
}

// Get returns one tracked search by ID.
func (h *TrackedSearchHandler) Get(
	ctx context.Context,
	input *TrackedSearchIDInput,
) (*TrackedSearchOutput, error) {
	ts, err := h.store.GetTrackedSearch(ctx, input.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, huma.Error404NotFound("tracked search not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("fetching tracked search failed: " + err.Error())
	}
	return &TrackedSearchOutput{Body: toView(ts)}, nil
}

// UpdateTrackedSearchInput carries the mutable settings. The query is
// immutable; track a new search instead.
type UpdateTrackedSearchInput struct {
	ID   string `path:"id" doc:"Tracked search UUID"`
	Body struct {
		MinDiscount      *float64 `json:"min_discount,omitempty" minimum:"0" maximum:"1"`
		FrequencyMinutes *int     `json:"frequency_minutes,omitempty" minimum:"1" maximum:"10080"`
		Enabled          *bool    `json:"enabled,omitempty"`
	}
}

// Update changes a tracked search's settings.
func (h *TrackedSearchHandler) Update(
	ctx context.Context,
	input *UpdateTrackedSearchInput,
) (*TrackedSearchOutput, error) {
	ts, err := h.store.GetTrackedSearch(ctx, input.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, huma.Error404NotFound("tracked search not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("fetching tracked search failed: " + err.Error())
	}

	if input.Body.MinDiscount != nil {
		ts.MinDiscount = *input.Body.MinDiscount
	}
	if input.Body.FrequencyMinutes != nil {
		ts.FrequencyMinutes = *input.Body.FrequencyMinutes
	}
	if input.Body.Enabled != nil {
		ts.Enabled = *input.Body.Enabled
	}

	if err := h.store.UpdateTrackedSearch(ctx, ts); err != nil {
		return nil, huma.Error500InternalServerError("updating tracked search failed: " + err.Error())
	}
	return &TrackedSearchOutput{Body: toView(ts)}, nil
}

// DeleteOutput reports how many rows a bulk delete removed.
type DeleteOutput struct {
	Body struct {
		Deleted int64 `json:"deleted"`
	}
}

// Delete removes a tracked search and all its dependent rows.
func (h *TrackedSearchHandler) Delete(
	ctx context.Context,
	input *TrackedSearchIDInput,
) (*struct{}, error) {
	err := h.store.DeleteTrackedSearch(ctx, input.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, huma.Error404NotFound("tracked search not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("deleting tracked search failed: " + err.Error())
	}
	return &struct{}{}, nil
}

// DeleteAll removes every tracked search.
func (h *TrackedSearchHandler) DeleteAll(
	ctx context.Context,
	_ *struct{},
) (*DeleteOutput, error) {
	n, err := h.store.DeleteAllTrackedSearches(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("deleting tracked searches failed: " + err.Error())
	}
	out := &DeleteOutput{}
	out.Body.Deleted = n
	return out, nil
}

// ListScanRunsOutput wraps a tracked search's recent scan runs.
type ListScanRunsOutput struct {
	Body []domain.ScanRun
}

// ListRuns returns the most recent scan runs for a tracked search.
func (h *TrackedSearchHandler) ListRuns(
	ctx context.Context,
	input *TrackedSearchIDInput,
) (*ListScanRunsOutput, error) {
	runs, err := h.store.ListScanRuns(ctx, input.ID, 20)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing scan runs failed: " + err.Error())
	}
	if runs == nil {
		runs = []domain.ScanRun{}
	}
	return &ListScanRunsOutput{Body: runs}, nil
}

// ListAlertEventsOutput wraps a tracked search's recent alerts.
type ListAlertEventsOutput struct {
	Body []domain.AlertEvent
}

// ListAlerts returns the most recent alert events for a tracked search.
func (h *TrackedSearchHandler) ListAlerts(
	ctx context.Context,
	input *TrackedSearchIDInput,
) (*ListAlertEventsOutput, error) {
	events, err := h.store.ListAlertEvents(ctx, input.ID, 50)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing alerts failed: " + err.Error())
	}
	if events == nil {
		events = []domain.AlertEvent{}
	}
	return &ListAlertEventsOutput{Body: events}, nil
}

// RegisterTrackedSearchRoutes registers tracked-search endpoints.
func RegisterTrackedSearchRoutes(api huma.API, h *TrackedSearchHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-tracked-search",
		Method:        http.MethodPost,
		Path:          "/api/v1/tracked-searches",
		Summary:       "Track a search",
		Description:   "Encrypts the query and scans it on a schedule, alerting once per newly discovered deal.",
		Tags:          []string{"tracked-searches"},
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "list-tracked-searches",
		Method:      http.MethodGet,
		Path:        "/api/v1/tracked-searches",
		Summary:     "List tracked searches",
		Tags:        []string{"tracked-searches"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "get-tracked-search",
		Method:      http.MethodGet,
		Path:        "/api/v1/tracked-searches/{id}",
		Summary:     "Get a tracked search",
		Tags:        []string{"tracked-searches"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "update-tracked-search",
		Method:      http.MethodPatch,
		Path:        "/api/v1/tracked-searches/{id}",
		Summary:     "Update a tracked search's settings",
		Tags:        []string{"tracked-searches"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-tracked-search",
		Method:        http.MethodDelete,
		Path:          "/api/v1/tracked-searches/{id}",
		Summary:       "Delete a tracked search",
		Tags:          []string{"tracked-searches"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "delete-all-tracked-searches",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tracked-searches",
		Summary:     "Delete all tracked searches",
		Tags:        []string{"tracked-searches"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.DeleteAll)

	huma.Register(api, huma.Operation{
		OperationID: "list-tracked-search-runs",
		Method:      http.MethodGet,
		Path:        "/api/v1/tracked-searches/{id}/runs",
		Summary:     "List recent scan runs",
		Tags:        []string{"tracked-searches"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListRuns)

	huma.Register(api, huma.Operation{
		OperationID: "list-tracked-search-alerts",
		Method:      http.MethodGet,
		Path:        "/api/v1/tracked-searches/{id}/alerts",
		Summary:     "List recent alerts",
		Tags:        []string{"tracked-searches"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListAlerts)
}
