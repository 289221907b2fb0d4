// Package migrations applies the orchestrator's local DuckDB schema in
// small, ordered, idempotent steps, the same pattern the teacher's
// internal/store used for its configuration/inventory tables: each
// migration is recorded by version in schema_migrations and skipped on
// subsequent runs.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	stmt    string
}

var migrationList = []migration{
	{
		version: 1,
		stmt: `CREATE TABLE IF NOT EXISTS pass_history (
			id            BIGINT PRIMARY KEY DEFAULT nextval('pass_history_id_seq'),
			started_at    TIMESTAMP NOT NULL,
			etag          VARCHAR,
			handler_count INTEGER NOT NULL,
			outcome       VARCHAR NOT NULL,
			message       VARCHAR
		)`,
	},
}

// Run applies every migration in migrationList not yet recorded in
// schema_migrations. Safe to call on every process start.
func Run(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE SEQUENCE IF NOT EXISTS pass_history_id_seq`); err != nil {
		return fmt.Errorf("create pass_history_id_seq: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, applied_at TIMESTAMP DEFAULT now())`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}

	for _, m := range migrationList {
		if applied[m.version] {
			continue
		}
		if _, err := db.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}
