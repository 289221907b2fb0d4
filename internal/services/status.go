package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kubev2v/guest-extension-agent/internal/models"
	"github.com/kubev2v/guest-extension-agent/internal/store"
	"github.com/kubev2v/guest-extension-agent/pkg/scheduler"
)

// StatusService reads the orchestrator's last published artifacts for the
// debug API (§4.7 waagent_status.json, SPEC_FULL.md §C.7 pass history). It
// holds no orchestration state of its own: the reconciliation pass (§5,
// single-threaded) is the only writer. Reads are dispatched through the
// shared worker-pool scheduler so a slow disk or DuckDB query never ties up
// an HTTP handler goroutine directly; the handler instead waits on the
// returned Future, same shape as the teacher's internal/services callers of
// pkg/scheduler.
type StatusService struct {
	snapshotPath string
	history      *store.PassHistoryStore
	sched        *scheduler.Scheduler
}

func NewStatusService(snapshotPath string, history *store.PassHistoryStore, sched *scheduler.Scheduler) *StatusService {
	return &StatusService{snapshotPath: snapshotPath, history: history, sched: sched}
}

// Snapshot returns the last status snapshot written by the orchestrator.
func (s *StatusService) Snapshot(ctx context.Context) (models.StatusSnapshot, error) {
	future := s.sched.AddWork(func(context.Context) (any, error) {
		data, err := os.ReadFile(s.snapshotPath)
		if err != nil {
			return nil, fmt.Errorf("read status snapshot: %w", err)
		}
		var snap models.StatusSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("decode status snapshot: %w", err)
		}
		return snap, nil
	})

	select {
	case <-ctx.Done():
		future.Stop()
		return models.StatusSnapshot{}, ctx.Err()
	case res := <-future.C():
		if res.Err != nil {
			return models.StatusSnapshot{}, res.Err
		}
		return res.Data.(models.StatusSnapshot), nil
	}
}

// Passes returns the most recent limit reconciliation-pass records.
func (s *StatusService) Passes(ctx context.Context, limit int) ([]models.PassRecord, error) {
	future := s.sched.AddWork(func(workCtx context.Context) (any, error) {
		return s.history.List(workCtx, limit)
	})

	select {
	case <-ctx.Done():
		future.Stop()
		return nil, ctx.Err()
	case res := <-future.C():
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Data == nil {
			return nil, nil
		}
		return res.Data.([]models.PassRecord), nil
	}
}
