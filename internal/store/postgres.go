package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

const defaultPoolSize = 10

// PostgresStore implements Store using pgxpool (connection-pooled
// PostgreSQL). Methods require live Postgres and are covered by the
// integration tests.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// CreateTrackedSearch inserts a new tracked search, assigning its ID.
func (s *PostgresStore) CreateTrackedSearch(ctx context.Context, ts *domain.TrackedSearch) error {
	if ts.ID == "" {
		ts.ID = uuid.New().String()
	}
	args := pgx.NamedArgs{
		"id":                ts.ID,
		"query_ciphertext":  ts.QueryCiphertext,
		"query_fingerprint": ts.QueryFingerprint,
		"min_discount":      ts.MinDiscount,
		"frequency_minutes": ts.FrequencyMinutes,
		"enabled":           ts.Enabled,
	}
	if err := s.pool.QueryRow(ctx, queryCreateTrackedSearch, args).Scan(&ts.CreatedAt); err != nil {
		return fmt.Errorf("creating tracked search: %w", err)
	}
	return nil
}

// GetTrackedSearch retrieves a tracked search by ID.
func (s *PostgresStore) GetTrackedSearch(ctx context.Context, id string) (*domain.TrackedSearch, error) {
	return s.getTrackedSearch(ctx, queryGetTrackedSearch, id)
}

// GetTrackedSearchByFingerprint retrieves a tracked search by its query
// fingerprint.
func (s *PostgresStore) GetTrackedSearchByFingerprint(
	ctx context.Context,
	fingerprint string,
) (*domain.TrackedSearch, error) {
	return s.getTrackedSearch(ctx, queryGetTrackedSearchByFingerprint, fingerprint)
}

func (s *PostgresStore) getTrackedSearch(
	ctx context.Context,
	query, arg string,
) (*domain.TrackedSearch, error) {
	ts := &domain.TrackedSearch{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&ts.ID, &ts.QueryCiphertext, &ts.QueryFingerprint,
		&ts.MinDiscount, &ts.FrequencyMinutes, &ts.Enabled,
		&ts.LastRunAt, &ts.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting tracked search: %w", err)
	}
	return ts, nil
}

// ListTrackedSearches returns all tracked searches, oldest first.
func (s *PostgresStore) ListTrackedSearches(ctx context.Context) ([]domain.TrackedSearch, error) {
	rows, err := s.pool.Query(ctx, queryListTrackedSearches)
	if err != nil {
		return nil, fmt.Errorf("listing tracked searches: %w", err)
	}
	defer rows.Close()

	var searches []domain.TrackedSearch
	for rows.Next() {
		var ts domain.TrackedSearch
		if err := rows.Scan(
			&ts.ID, &ts.QueryCiphertext, &ts.QueryFingerprint,
			&ts.MinDiscount, &ts.FrequencyMinutes, &ts.Enabled,
			&ts.LastRunAt, &ts.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning tracked search: %w", err)
		}
		searches = append(searches, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tracked searches: %w", err)
	}
	return searches, nil
}

// UpdateTrackedSearch updates the mutable settings of a tracked search.
// The query itself is immutable; create a new search for a new query.
func (s *PostgresStore) UpdateTrackedSearch(ctx context.Context, ts *domain.TrackedSearch) error {
	tag, err := s.pool.Exec(ctx, queryUpdateTrackedSearch,
		ts.ID, ts.MinDiscount, ts.FrequencyMinutes, ts.Enabled,
	)
	if err != nil {
		return fmt.Errorf("updating tracked search: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTrackedSearchEnabled toggles a tracked search on or off.
func (s *PostgresStore) SetTrackedSearchEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := s.pool.Exec(ctx, querySetTrackedSearchEnabled, id, enabled)
	if err != nil {
		return fmt.Errorf("setting tracked search enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastRun advances the scheduling watermark for a tracked search.
func (s *PostgresStore) UpdateLastRun(ctx context.Context, id string, t time.Time) error {
	if _, err := s.pool.Exec(ctx, queryUpdateLastRun, id, t); err != nil {
		return fmt.Errorf("updating last run: %w", err)
	}
	return nil
}

// DeleteTrackedSearch deletes a tracked search and, via cascade, its
// scan runs, seen items, and alert events.
func (s *PostgresStore) DeleteTrackedSearch(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, queryDeleteTrackedSearch, id)
	if err != nil {
		return fmt.Errorf("deleting tracked search: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllTrackedSearches removes every tracked search and its
// dependent rows. Returns the number of searches removed.
func (s *PostgresStore) DeleteAllTrackedSearches(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, queryDeleteAllTrackedSearches)
	if err != nil {
		return 0, fmt.Errorf("deleting tracked searches: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CreateScanRun opens a scan run in the running state.
func (s *PostgresStore) CreateScanRun(ctx context.Context, run *domain.ScanRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = domain.ScanStatusRunning
	}
	args := pgx.NamedArgs{
		"id":                run.ID,
		"tracked_search_id": run.TrackedSearchID,
		"status":            run.Status,
	}
	if err := s.pool.QueryRow(ctx, queryCreateScanRun, args).Scan(&run.StartedAt); err != nil {
		return fmt.Errorf("creating scan run: %w", err)
	}
	return nil
}

// FinishScanRun moves a running scan run to a terminal state. Finished
// runs are never re-opened; finishing one twice is a no-op error.
func (s *PostgresStore) FinishScanRun(ctx context.Context, id, status, errText string, stats []byte) error {
	tag, err := s.pool.Exec(ctx, queryFinishScanRun, id, status, errText, stats)
	if err != nil {
		return fmt.Errorf("finishing scan run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListScanRuns returns the most recent scan runs for a tracked search.
func (s *PostgresStore) ListScanRuns(
	ctx context.Context,
	trackedSearchID string,
	limit int,
) ([]domain.ScanRun, error) {
	rows, err := s.pool.Query(ctx, queryListScanRuns, trackedSearchID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing scan runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.ScanRun
	for rows.Next() {
		var r domain.ScanRun
		if err := rows.Scan(
			&r.ID, &r.TrackedSearchID, &r.StartedAt, &r.FinishedAt,
			&r.Status, &r.ErrorText, &r.Stats,
		); err != nil {
			return nil, fmt.Errorf("scanning scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scan runs: %w", err)
	}
	return runs, nil
}

// GetSeenItem fetches the dedup ledger row for one (search, item) pair.
func (s *PostgresStore) GetSeenItem(
	ctx context.Context,
	trackedSearchID, itemKey string,
) (*domain.SeenItem, error) {
	item := &domain.SeenItem{}
	err := s.pool.QueryRow(ctx, queryGetSeenItem, trackedSearchID, itemKey).Scan(
		&item.ID, &item.TrackedSearchID, &item.ItemKey, &item.URL, &item.Title,
		&item.LastPrice, &item.FirstSeenAt, &item.LastSeenAt, &item.AlertedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting seen item: %w", err)
	}
	return item, nil
}

// InsertSeenItem records a newly seen item. A concurrent insert for the
// same (search, item) pair is silently ignored; the ledger keeps the
// first writer's row.
func (s *PostgresStore) InsertSeenItem(ctx context.Context, item *domain.SeenItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	args := pgx.NamedArgs{
		"id":                item.ID,
		"tracked_search_id": item.TrackedSearchID,
		"item_key":          item.ItemKey,
		"url":               item.URL,
		"title":             item.Title,
		"last_price":        item.LastPrice,
		"seen_at":           item.LastSeenAt,
	}
	if _, err := s.pool.Exec(ctx, queryInsertSeenItem, args); err != nil {
		return fmt.Errorf("inserting seen item: %w", err)
	}
	return nil
}

// TouchSeenItem refreshes the mutable fields of an existing ledger row
// with the latest sighting.
func (s *PostgresStore) TouchSeenItem(
	ctx context.Context,
	trackedSearchID, itemKey, url, title string,
	price float64,
	seenAt time.Time,
) error {
	if _, err := s.pool.Exec(ctx, queryTouchSeenItem, trackedSearchID, itemKey, url, title, price, seenAt); err != nil {
		return fmt.Errorf("touching seen item: %w", err)
	}
	return nil
}

// MarkAlerted sets the one-way alerted_at latch. Returns true when this
// call won the latch and the caller should record the alert; false when
// the item was already alerted.
func (s *PostgresStore) MarkAlerted(
	ctx context.Context,
	trackedSearchID, itemKey string,
	at time.Time,
) (bool, error) {
	tag, err := s.pool.Exec(ctx, queryMarkAlerted, trackedSearchID, itemKey, at)
	if err != nil {
		return false, fmt.Errorf("marking alerted: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertAlertEvent appends one alert to the log.
func (s *PostgresStore) InsertAlertEvent(ctx context.Context, ev *domain.AlertEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	args := pgx.NamedArgs{
		"id":                ev.ID,
		"tracked_search_id": ev.TrackedSearchID,
		"item_key":          ev.ItemKey,
		"payload":           ev.Payload,
	}
	if err := s.pool.QueryRow(ctx, queryInsertAlertEvent, args).Scan(&ev.CreatedAt); err != nil {
		return fmt.Errorf("inserting alert event: %w", err)
	}
	return nil
}

// ListAlertEvents returns the most recent alerts for a tracked search.
func (s *PostgresStore) ListAlertEvents(
	ctx context.Context,
	trackedSearchID string,
	limit int,
) ([]domain.AlertEvent, error) {
	rows, err := s.pool.Query(ctx, queryListAlertEvents, trackedSearchID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing alert events: %w", err)
	}
	defer rows.Close()

	var events []domain.AlertEvent
	for rows.Next() {
		var ev domain.AlertEvent
		if err := rows.Scan(
			&ev.ID, &ev.TrackedSearchID, &ev.ItemKey, &ev.Payload, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning alert event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alert events: %w", err)
	}
	return events, nil
}

// CountAlertEvents counts alerts recorded for one (search, item) pair.
func (s *PostgresStore) CountAlertEvents(
	ctx context.Context,
	trackedSearchID, itemKey string,
) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, queryCountAlertEvents, trackedSearchID, itemKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting alert events: %w", err)
	}
	return count, nil
}

// DeleteScanRunsBefore removes scan runs older than cutoff.
func (s *PostgresStore) DeleteScanRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, queryDeleteScanRunsBefore, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting scan runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAlertEventsBefore removes alert events older than cutoff.
func (s *PostgresStore) DeleteAlertEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, queryDeleteAlertEventsBefore, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting alert events: %w", err)
	}
	return tag.RowsAffected(), nil
}
