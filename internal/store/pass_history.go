package store

import (
	"context"
	"database/sql"

	"github.com/kubev2v/guest-extension-agent/internal/models"
)

// PassHistoryStore persists one row per reconciliation pass (SPEC_FULL.md
// §C.7): a supplemental feature proportionate to what a production guest
// agent keeps for diagnostics, surfaced read-only through the debug API.
type PassHistoryStore struct {
	db *sql.DB
}

func NewPassHistoryStore(db *sql.DB) *PassHistoryStore {
	return &PassHistoryStore{db: db}
}

// Record inserts one pass-history row. It implements
// internal/orchestrator.PassRecorder.
func (s *PassHistoryStore) Record(ctx context.Context, rec models.PassRecord) error {
	_, err := s.db.ExecContext(ctx, queryInsertPassRecord, rec.StartedAt, rec.Etag, rec.HandlerCount, rec.Outcome, rec.Message)
	return err
}

// List returns the most recent limit pass records, newest first.
func (s *PassHistoryStore) List(ctx context.Context, limit int) ([]models.PassRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, queryListPassRecords, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PassRecord
	for rows.Next() {
		var rec models.PassRecord
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.Etag, &rec.HandlerCount, &rec.Outcome, &rec.Message); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
