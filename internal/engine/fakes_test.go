package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sidpendyala/marketmaker/internal/store"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// fakeMarket serves canned listings keyed by query.
type fakeMarket struct {
	mu         sync.Mutex
	sold       map[string][]domain.Listing
	active     map[string][]domain.Listing
	soldErr    error
	activeErr  error
	conditions map[string]*domain.ConditionInfo
	scrapeErr  error

	searchCalls int
	scrapeCalls int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		sold:       map[string][]domain.Listing{},
		active:     map[string][]domain.Listing{},
		conditions: map[string]*domain.ConditionInfo{},
	}
}

func (m *fakeMarket) SearchSold(_ context.Context, query string) ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	if m.soldErr != nil {
		return nil, m.soldErr
	}
	return m.sold[query], nil
}

func (m *fakeMarket) SearchActive(_ context.Context, query string) ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	return m.active[query], nil
}

func (m *fakeMarket) ScrapeCondition(_ context.Context, url string) (*domain.ConditionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrapeCalls++
	if m.scrapeErr != nil {
		return nil, m.scrapeErr
	}
	return m.conditions[url], nil
}

// fakeAdvisor answers from fixed values.
type fakeAdvisor struct {
	refined    string
	refineErr  error
	brandPrice *float64
	brandErr   error

	refineCalls int
}

func (a *fakeAdvisor) RefineQuery(_ context.Context, _, _ string) (string, error) {
	a.refineCalls++
	return a.refined, a.refineErr
}

func (a *fakeAdvisor) BrandRetailPrice(_ context.Context, _ string) (*float64, error) {
	return a.brandPrice, a.brandErr
}

// fakeStore is an in-memory Store for scan and scheduler tests.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int
	searches map[string]*domain.TrackedSearch
	runs     map[string]*domain.ScanRun
	seen     map[string]*domain.SeenItem
	events   []domain.AlertEvent

	deletedRunsBefore   []time.Time
	deletedEventsBefore []time.Time

	getSeenErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		searches: map[string]*domain.TrackedSearch{},
		runs:     map[string]*domain.ScanRun{},
		seen:     map[string]*domain.SeenItem{},
	}
}

func (s *fakeStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func seenKey(tsID, itemKey string) string {
	return tsID + "|" + itemKey
}

func (s *fakeStore) CreateTrackedSearch(_ context.Context, ts *domain.TrackedSearch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts.ID == "" {
		ts.ID = s.id("ts")
	}
	ts.CreatedAt = time.Now()
	cp := *ts
	s.searches[ts.ID] = &cp
	return nil
}

func (s *fakeStore) GetTrackedSearch(_ context.Context, id string) (*domain.TrackedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.searches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ts
	return &cp, nil
}

func (s *fakeStore) GetTrackedSearchByFingerprint(_ context.Context, fp string) (*domain.TrackedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ts := range s.searches {
		if ts.QueryFingerprint == fp {
			cp := *ts
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) ListTrackedSearches(_ context.Context) ([]domain.TrackedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TrackedSearch
	for _, ts := range s.searches {
		out = append(out, *ts)
	}
	return out, nil
}

func (s *fakeStore) UpdateTrackedSearch(_ context.Context, ts *domain.TrackedSearch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.searches[ts.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.MinDiscount = ts.MinDiscount
	cur.FrequencyMinutes = ts.FrequencyMinutes
	cur.Enabled = ts.Enabled
	return nil
}

func (s *fakeStore) SetTrackedSearchEnabled(_ context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.searches[id]
	if !ok {
		return store.ErrNotFound
	}
	ts.Enabled = enabled
	return nil
}

func (s *fakeStore) UpdateLastRun(_ context.Context, id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.searches[id]
	if !ok {
		return store.ErrNotFound
	}
	ts.LastRunAt = &t
	return nil
}

func (s *fakeStore) DeleteTrackedSearch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.searches[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.searches, id)
	return nil
}

func (s *fakeStore) DeleteAllTrackedSearches(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.searches))
	s.searches = map[string]*domain.TrackedSearch{}
	return n, nil
}

func (s *fakeStore) CreateScanRun(_ context.Context, run *domain.ScanRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = s.id("run")
	}
	run.StartedAt = time.Now()
	run.Status = domain.ScanStatusRunning
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *fakeStore) FinishScanRun(_ context.Context, id, status, errText string, stats []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok || run.FinishedAt != nil {
		return store.ErrNotFound
	}
	now := time.Now()
	run.FinishedAt = &now
	run.Status = status
	run.ErrorText = errText
	run.Stats = stats
	return nil
}

func (s *fakeStore) ListScanRuns(_ context.Context, tsID string, _ int) ([]domain.ScanRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScanRun
	for _, run := range s.runs {
		if run.TrackedSearchID == tsID {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (s *fakeStore) GetSeenItem(_ context.Context, tsID, itemKey string) (*domain.SeenItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getSeenErr != nil {
		return nil, s.getSeenErr
	}
	item, ok := s.seen[seenKey(tsID, itemKey)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *fakeStore) InsertSeenItem(_ context.Context, item *domain.SeenItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := seenKey(item.TrackedSearchID, item.ItemKey)
	if _, ok := s.seen[key]; ok {
		return nil
	}
	if item.ID == "" {
		item.ID = s.id("seen")
	}
	cp := *item
	s.seen[key] = &cp
	return nil
}

func (s *fakeStore) TouchSeenItem(_ context.Context, tsID, itemKey, url, title string, price float64, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.seen[seenKey(tsID, itemKey)]
	if !ok {
		return nil
	}
	item.URL = url
	item.Title = title
	item.LastPrice = price
	item.LastSeenAt = seenAt
	return nil
}

func (s *fakeStore) MarkAlerted(_ context.Context, tsID, itemKey string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.seen[seenKey(tsID, itemKey)]
	if !ok || item.AlertedAt != nil {
		return false, nil
	}
	item.AlertedAt = &at
	return true, nil
}

func (s *fakeStore) InsertAlertEvent(_ context.Context, ev *domain.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ID == "" {
		ev.ID = s.id("ev")
	}
	ev.CreatedAt = time.Now()
	s.events = append(s.events, *ev)
	return nil
}

func (s *fakeStore) ListAlertEvents(_ context.Context, tsID string, _ int) ([]domain.AlertEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AlertEvent
	for _, ev := range s.events {
		if ev.TrackedSearchID == tsID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeStore) CountAlertEvents(_ context.Context, tsID, itemKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.TrackedSearchID == tsID && ev.ItemKey == itemKey {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) DeleteScanRunsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedRunsBefore = append(s.deletedRunsBefore, cutoff)
	return 0, nil
}

func (s *fakeStore) DeleteAlertEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedEventsBefore = append(s.deletedEventsBefore, cutoff)
	return 0, nil
}

func (s *fakeStore) Migrate(context.Context) error { return nil }

func (s *fakeStore) Ping(context.Context) error { return nil }

// fakeNotifier records delivered alerts and can fail on demand.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []domain.AlertPayload
	sendErr error
}

func (n *fakeNotifier) SendDealAlert(_ context.Context, _ string, alert *domain.AlertPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, *alert)
	return nil
}
