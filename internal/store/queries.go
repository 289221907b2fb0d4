package store

// Pass-history queries (supplemental feature, SPEC_FULL.md §C.7).
const (
	queryInsertPassRecord = `
		INSERT INTO pass_history (started_at, etag, handler_count, outcome, message)
		VALUES (?, ?, ?, ?, ?)`

	queryListPassRecords = `
		SELECT id, started_at, etag, handler_count, outcome, message
		FROM pass_history
		ORDER BY started_at DESC
		LIMIT ?`
)
