package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidpendyala/marketmaker/internal/api/handlers"
	"github.com/sidpendyala/marketmaker/internal/crypto"
	"github.com/sidpendyala/marketmaker/internal/store"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// mockTrackedStore is a test double for TrackedSearchProvider.
type mockTrackedStore struct {
	searches map[string]*domain.TrackedSearch
	runs     []domain.ScanRun
	events   []domain.AlertEvent
	err      error

	nextID int
}

func newMockTrackedStore() *mockTrackedStore {
	return &mockTrackedStore{searches: map[string]*domain.TrackedSearch{}}
}

func (m *mockTrackedStore) CreateTrackedSearch(_ context.Context, ts *domain.TrackedSearch) error {
	if m.err != nil {
		return m.err
	}
	m.nextID++
	ts.ID = "ts-" + string(rune('0'+m.nextID))
	ts.CreatedAt = time.Now()
	m.searches[ts.ID] = ts
	return nil
}

func (m *mockTrackedStore) GetTrackedSearch(_ context.Context, id string) (*domain.TrackedSearch, error) {
	if m.err != nil {
		return nil, m.err
	}
	ts, ok := m.searches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return ts, nil
}

func (m *mockTrackedStore) GetTrackedSearchByFingerprint(_ context.Context, fp string) (*domain.TrackedSearch, error) {
	for _, ts := range m.searches {
		if ts.QueryFingerprint == fp {
			return ts, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockTrackedStore) ListTrackedSearches(context.Context) ([]domain.TrackedSearch, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.TrackedSearch
	for _, ts := range m.searches {
		out = append(out, *ts)
	}
	return out, nil
}

func (m *mockTrackedStore) UpdateTrackedSearch(_ context.Context, ts *domain.TrackedSearch) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.searches[ts.ID]; !ok {
		return store.ErrNotFound
	}
	m.searches[ts.ID] = ts
	return nil
}

func (m *mockTrackedStore) DeleteTrackedSearch(_ context.Context, id string) error {
	if _, ok := m.searches[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.searches, id)
	return nil
}

func (m *mockTrackedStore) DeleteAllTrackedSearches(context.Context) (int64, error) {
	n := int64(len(m.searches))
	m.searches = map[string]*domain.TrackedSearch{}
	return n, nil
}

func (m *mockTrackedStore) ListScanRuns(context.Context, string, int) ([]domain.ScanRun, error) {
	return m.runs, m.err
}

func (m *mockTrackedStore) ListAlertEvents(context.Context, string, int) ([]domain.AlertEvent, error) {
	return m.events, m.err
}

func newTrackedAPI(t *testing.T, st *mockTrackedStore) humatest.TestAPI {
	t.Helper()
	codec, err := crypto.New("handler-test-secret")
	require.NoError(t, err)

	_, api := humatest.New(t)
	handlers.RegisterTrackedSearchRoutes(api, handlers.NewTrackedSearchHandler(st, codec))
	return api
}

func TestCreateTrackedSearch(t *testing.T) {
	t.Parallel()

	st := newMockTrackedStore()
	api := newTrackedAPI(t, st)

	resp := api.Post("/api/v1/tracked-searches", map[string]any{
		"query":             "iphone 15 pro",
		"min_discount":      0.3,
		"frequency_minutes": 120,
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	body := resp.Body.String()
	assert.NotContains(t, body, "iphone", "plaintext query never leaves the server")
	assert.Contains(t, body, "fingerprint_prefix")
	assert.Contains(t, body, `"min_discount":0.3`)
	assert.Contains(t, body, `"frequency_minutes":120`)
	assert.Contains(t, body, `"enabled":true`)
	require.Len(t, st.searches, 1)
	for _, ts := range st.searches {
		assert.NotEmpty(t, ts.QueryCiphertext)
		assert.NotContains(t, ts.QueryCiphertext, "iphone")
	}
}

func TestCreateTrackedSearch_Defaults(t *testing.T) {
	t.Parallel()

	st := newMockTrackedStore()
	api := newTrackedAPI(t, st)

	resp := api.Post("/api/v1/tracked-searches", map[string]any{"query": "steam deck"})
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Contains(t, resp.Body.String(), `"min_discount":0.2`)
	assert.Contains(t, resp.Body.String(), `"frequency_minutes":60`)
}

func TestCreateTrackedSearch_DuplicateQuery(t *testing.T) {
	t.Parallel()

	st := newMockTrackedStore()
	api := newTrackedAPI(t, st)

	resp := api.Post("/api/v1/tracked-searches", map[string]any{"query": "steam deck"})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = api.Post("/api/v1/tracked-searches", map[string]any{"query": "steam deck"})
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestCreateTrackedSearch_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing query", body: map[string]any{}},
		{name: "blank query", body: map[string]any{"query": "   "}},
		{name: "discount above one", body: map[string]any{"query": "q", "min_discount": 1.5}},
		{name: "negative discount", body: map[string]any{"query": "q", "min_discount": -0.1}},
		{name: "zero frequency", body: map[string]any{"query": "q", "frequency_minutes": 0}},
		{name: "frequency beyond a week", body: map[string]any{"query": "q", "frequency_minutes": 10081}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := newTrackedAPI(t, newMockTrackedStore())
			resp := api.Post("/api/v1/tracked-searches", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		})
	}
}

func TestListTrackedSearches_HidesQueries(t *testing.T) {
	t.Parallel()

	st := newMockTrackedStore()
	api := newTrackedAPI(t, st)

	resp := api.Post("/api/v1/tracked-searches", map[string]any{"query": "rtx 4090 founders"})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = api.Get("/api/v1/tracked-searches")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotContains(t, resp.Body.String(), "rtx")
	assert.Contains(t, resp.Body.String(), "fingerprint_prefix")
}

func TestUpdateTrackedSearch(t *testing.T) {
	t.Parallel()

	st := newMockTrackedStore()
	api := newTrackedAPI(t, st)

	resp := api.Post("/api/v1/tracked-searches", map[string]any{"query": "steam deck"})
	require.Equal(t, http.StatusCreated, resp.Code)

	var id string
	for k := range st.searches {
		id = k
	}

	resp = api.Patch("/api/v1/tracked-searches/"+id, map[string]any{
		"enabled":      false,
		"min_discount": 0.4,
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"enabled":false`)
	assert.Equal(t, 0.4, st.searches[id].MinDiscount)
	assert.Equal(t, 60, st.searches[id].FrequencyMinutes, "omitted fields are untouched")
}

func TestUpdateTrackedSearch_NotFound(t *testing.T) {
	t.Parallel()

	api := newTrackedAPI(t, newMockTrackedStore())
	resp := api.Patch("/api/v1/tracked-searches/missing", map[string]any{"enabled": false})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteTrackedSearch(t *testing.T) {
	t.Parallel()

	st := newMockTrackedStore()
	api := newTrackedAPI(t, st)

	resp := api.Post("/api/v1/tracked-searches", map[string]any{"query": "steam deck"})
	require.Equal(t, http.StatusCreated, resp.Code)

	var id string
	for k := range st.searches {
		id = k
	}

	resp = api.Delete("/api/v1/tracked-searches/" + id)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Empty(t, st.searches)

	resp = api.Delete("/api/v1/tracked-searches/" + id)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteAllTrackedSearches(t *testing.T) {
	t.Parallel()

	st := newMockTrackedStore()
	api := newTrackedAPI(t, st)

	api.Post("/api/v1/tracked-searches", map[string]any{"query": "one"})
	api.Post("/api/v1/tracked-searches", map[string]any{"query": "two"})

	resp := api.Delete("/api/v1/tracked-searches")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"deleted":2`)
}

func TestListRunsAndAlerts_Empty(t *testing.T) {
	t.Parallel()

	api := newTrackedAPI(t, newMockTrackedStore())

	resp := api.Get("/api/v1/tracked-searches/ts-1/runs")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "[]")

	resp = api.Get("/api/v1/tracked-searches/ts-1/alerts")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "[]")
}
