package orchestrator

import (
	"context"
	"time"

	"github.com/kubev2v/guest-extension-agent/internal/handler"
	"github.com/kubev2v/guest-extension-agent/internal/models"
)

// waitForCompletion polls inst's extension status files every PollInterval
// until every extension reports a terminal success, one reports a terminal
// error (fails fast), or deadline passes (§4.1 "Dependency ordering"). A
// handler with no extensions at all is vacuously successful.
func (o *Orchestrator) waitForCompletion(ctx context.Context, inst handler.Instance, extensions []models.ExtensionGoalState, deadline time.Time) bool {
	if len(extensions) == 0 {
		return true
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		allSuccess, anyFailed := o.pollOnce(inst, extensions)
		if anyFailed {
			return false
		}
		if allSuccess {
			return true
		}
		if o.now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) pollOnce(inst handler.Instance, extensions []models.ExtensionGoalState) (allSuccess, anyFailed bool) {
	allSuccess = true
	for idx, ext := range extensions {
		seq := inst.SequenceNumber(ext, idx)
		st, present := inst.GetExtHandlingStatus(seq)
		if !present || !st.Status.IsTerminal() {
			allSuccess = false
			continue
		}
		if st.Status != models.ExtStatusSuccess {
			anyFailed = true
		}
	}
	return allSuccess, anyFailed
}
