package models

import "context"

// Work is a unit of schedulable async work (§5: kept out of the
// reconciliation pass itself, used by the telemetry sink and debug API).
type Work[T any] func(ctx context.Context) (T, error)

// Result carries the outcome of a Work invocation back through a Future.
type Result[T any] struct {
	Data T
	Err  error
}
