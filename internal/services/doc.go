// Package services implements the business-logic layer backing the
// orchestrator's read-only debug API: a thin intermediary between the
// HTTP handlers and the on-disk status snapshot / pass-history store,
// following the same handler-delegates-to-service shape as the teacher's
// internal/services package.
package services
