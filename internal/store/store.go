// Package store defines the datastore abstraction for marketmaker.
// All business logic depends on the Store interface, never on concrete
// implementations. This enables fake-based testing without a running
// database.
package store

import (
	"context"
	"errors"
	"time"

	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines all data access operations for marketmaker.
type Store interface {
	// Tracked searches
	CreateTrackedSearch(ctx context.Context, ts *domain.TrackedSearch) error
	GetTrackedSearch(ctx context.Context, id string) (*domain.TrackedSearch, error)
	GetTrackedSearchByFingerprint(ctx context.Context, fingerprint string) (*domain.TrackedSearch, error)
	ListTrackedSearches(ctx context.Context) ([]domain.TrackedSearch, error)
	UpdateTrackedSearch(ctx context.Context, ts *domain.TrackedSearch) error
	SetTrackedSearchEnabled(ctx context.Context, id string, enabled bool) error
	UpdateLastRun(ctx context.Context, id string, t time.Time) error
	DeleteTrackedSearch(ctx context.Context, id string) error
	DeleteAllTrackedSearches(ctx context.Context) (int64, error)

	// Scan runs
	CreateScanRun(ctx context.Context, run *domain.ScanRun) error
	FinishScanRun(ctx context.Context, id, status, errText string, stats []byte) error
	ListScanRuns(ctx context.Context, trackedSearchID string, limit int) ([]domain.ScanRun, error)

	// Seen items and alerts
	GetSeenItem(ctx context.Context, trackedSearchID, itemKey string) (*domain.SeenItem, error)
	InsertSeenItem(ctx context.Context, item *domain.SeenItem) error
	TouchSeenItem(ctx context.Context, trackedSearchID, itemKey, url, title string, price float64, seenAt time.Time) error
	MarkAlerted(ctx context.Context, trackedSearchID, itemKey string, at time.Time) (bool, error)
	InsertAlertEvent(ctx context.Context, ev *domain.AlertEvent) error
	ListAlertEvents(ctx context.Context, trackedSearchID string, limit int) ([]domain.AlertEvent, error)
	CountAlertEvents(ctx context.Context, trackedSearchID, itemKey string) (int, error)

	// Retention
	DeleteScanRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAlertEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
