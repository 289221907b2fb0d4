package store

import (
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
)

// NewDB opens the DuckDB database backing the pass-history audit log. path
// may be a filesystem path or ":memory:" for an ephemeral, test-only store.
func NewDB(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb at %q: %w", path, err)
	}
	return db, nil
}

// Store provides access to the orchestrator's local persistence
// repositories.
type Store struct {
	db      *sql.DB
	history *PassHistoryStore
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:      db,
		history: NewPassHistoryStore(db),
	}
}

// PassHistory returns the pass-history audit-log repository.
func (s *Store) PassHistory() *PassHistoryStore {
	return s.history
}

func (s *Store) Close() error {
	return s.db.Close()
}
