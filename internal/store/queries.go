package store

// SQL query constants organized by entity.
// All SQL lives here. PostgresStore methods reference these constants.

// Tracked search queries.
const (
	queryCreateTrackedSearch = `
		INSERT INTO tracked_searches (
			id, query_ciphertext, query_fingerprint,
			min_discount, frequency_minutes, enabled, created_at
		) VALUES (
			@id, @query_ciphertext, @query_fingerprint,
			@min_discount, @frequency_minutes, @enabled, now()
		)
		RETURNING created_at`

	queryGetTrackedSearch = `
		SELECT id, query_ciphertext, query_fingerprint,
			min_discount, frequency_minutes, enabled, last_run_at, created_at
		FROM tracked_searches
		WHERE id = $1`

	queryGetTrackedSearchByFingerprint = `
		SELECT id, query_ciphertext, query_fingerprint,
			min_discount, frequency_minutes, enabled, last_run_at, created_at
		FROM tracked_searches
		WHERE query_fingerprint = $1`

	queryListTrackedSearches = `
		SELECT id, query_ciphertext, query_fingerprint,
			min_discount, frequency_minutes, enabled, last_run_at, created_at
		FROM tracked_searches
		ORDER BY created_at`

	queryUpdateTrackedSearch = `
		UPDATE tracked_searches SET
			min_discount = $2,
			frequency_minutes = $3,
			enabled = $4
		WHERE id = $1`

	querySetTrackedSearchEnabled = `
		UPDATE tracked_searches SET enabled = $2 WHERE id = $1`

	queryUpdateLastRun = `
		UPDATE tracked_searches SET last_run_at = $2 WHERE id = $1`

	queryDeleteTrackedSearch = `
		DELETE FROM tracked_searches WHERE id = $1`

	queryDeleteAllTrackedSearches = `
		DELETE FROM tracked_searches`
)

// Scan run queries.
const (
	queryCreateScanRun = `
		INSERT INTO scan_runs (id, tracked_search_id, started_at, status)
		VALUES (@id, @tracked_search_id, now(), @status)
		RETURNING started_at`

	queryFinishScanRun = `
		UPDATE scan_runs SET
			finished_at = now(),
			status = $2,
			error_text = $3,
			stats = $4
		WHERE id = $1 AND finished_at IS NULL`

	queryListScanRuns = `
		SELECT id, tracked_search_id, started_at, finished_at,
			status, error_text, COALESCE(stats, 'null')
		FROM scan_runs
		WHERE tracked_search_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	queryDeleteScanRunsBefore = `
		DELETE FROM scan_runs WHERE started_at < $1`
)

// Seen item queries.
const (
	queryGetSeenItem = `
		SELECT id, tracked_search_id, item_key, url, title,
			last_price, first_seen_at, last_seen_at, alerted_at
		FROM seen_items
		WHERE tracked_search_id = $1 AND item_key = $2`

	queryInsertSeenItem = `
		INSERT INTO seen_items (
			id, tracked_search_id, item_key, url, title,
			last_price, first_seen_at, last_seen_at
		) VALUES (
			@id, @tracked_search_id, @item_key, @url, @title,
			@last_price, @seen_at, @seen_at
		)
		ON CONFLICT (tracked_search_id, item_key) DO NOTHING`

	queryTouchSeenItem = `
		UPDATE seen_items SET
			url = $3,
			title = $4,
			last_price = $5,
			last_seen_at = $6
		WHERE tracked_search_id = $1 AND item_key = $2`

	// alerted_at is a one-way latch: the IS NULL guard makes the first
	// writer win and every later attempt a no-op.
	queryMarkAlerted = `
		UPDATE seen_items SET alerted_at = $3
		WHERE tracked_search_id = $1 AND item_key = $2 AND alerted_at IS NULL`
)

// Alert event queries.
const (
	queryInsertAlertEvent = `
		INSERT INTO alert_events (id, tracked_search_id, item_key, payload, created_at)
		VALUES (@id, @tracked_search_id, @item_key, @payload, now())
		RETURNING created_at`

	queryListAlertEvents = `
		SELECT id, tracked_search_id, item_key, payload, created_at
		FROM alert_events
		WHERE tracked_search_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	queryCountAlertEvents = `
		SELECT COUNT(*) FROM alert_events
		WHERE tracked_search_id = $1 AND item_key = $2`

	queryDeleteAlertEventsBefore = `
		DELETE FROM alert_events WHERE created_at < $1`
)
