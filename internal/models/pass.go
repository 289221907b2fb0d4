package models

import "time"

// PassRecord is one row of the reconciliation-pass audit trail persisted
// to internal/store (supplemental feature, SPEC_FULL.md §C.7).
type PassRecord struct {
	ID           int64
	StartedAt    time.Time
	Etag         string
	HandlerCount int
	Outcome      string // "ok", "skipped", "error"
	Message      string
}
