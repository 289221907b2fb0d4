// Package store implements the pass-history audit log for the extension
// handler orchestrator, using DuckDB (the teacher's embedded storage
// engine, github.com/duckdb/duckdb-go/v2) instead of a standalone database
// service.
//
// # Schema
//
//	pass_history (
//	    id            BIGINT PRIMARY KEY,
//	    started_at    TIMESTAMP NOT NULL,
//	    etag          VARCHAR,
//	    handler_count INTEGER NOT NULL,
//	    outcome       VARCHAR NOT NULL,
//	    message       VARCHAR
//	)
//
// Migrations are tracked in schema_migrations the same way the teacher's
// configuration/inventory tables were: a small ordered list applied once,
// recorded by version, and safe to re-run.
package store
