package orchestrator

import (
	"context"
	"encoding/json"
	"os"

	"github.com/kubev2v/guest-extension-agent/internal/handler"
	"github.com/kubev2v/guest-extension-agent/internal/models"
	"github.com/kubev2v/guest-extension-agent/internal/telemetry"
)

// reportStatus assembles the aggregate VMStatus from every handler's
// persisted HandlerStatus, uploads it through the protocol client (gated by
// the report ErrorGate), and writes the local waagent_status.json snapshot
// regardless of upload success (§4.7).
func (o *Orchestrator) reportStatus(ctx context.Context, handlers []models.HandlerGoalState) {
	var vmStatus models.VMStatus
	for _, hg := range handlers {
		v := o.anyVersionOnDisk(hg.Name)
		if v == "" {
			continue
		}
		id := models.HandlerIdentity{Name: hg.Name, Version: v}
		inst := handler.New(o.cfg.LibRoot, o.cfg.ExtLogRoot, id, o.sink)
		st, ok := inst.CollectStatus(hg.Extensions)
		if !ok {
			continue
		}
		vmStatus.Handlers = append(vmStatus.Handlers, st)
	}

	if err := o.client.ReportVMStatus(ctx, vmStatus); err != nil {
		o.reportGate.Incr()
		if o.reportGate.IsTriggered() {
			o.sink.AddEvent(telemetry.Event{Op: telemetry.OpReportStatusExtended, IsSuccess: false, Message: err.Error()})
			o.reportGate.Reset()
		} else {
			o.log.Warnw("failed to report VM status", "error", err)
		}
	} else {
		o.reportGate.Reset()
	}

	o.writeSnapshot(vmStatus)
}

// writeSnapshot persists the flattened, agent-metadata-enriched view of
// vmStatus to waagent_status.json, stripping code/message/extensions from
// each handler entry (§4.7).
func (o *Orchestrator) writeSnapshot(vmStatus models.VMStatus) {
	snapshot := models.StatusSnapshot{
		AgentName:             o.cfg.AgentName,
		RunningVersion:        o.cfg.RunningVersion,
		GoalStateAgentVersion: o.cfg.GoalStateAgentVersion,
		Distro:                o.cfg.Distro,
		PythonVersion:         o.cfg.PythonVersion,
		Timestamp:             handler.NowISOZ(o.now()),
	}
	for _, h := range vmStatus.Handlers {
		snapshot.Handlers = append(snapshot.Handlers, models.HandlerSnapshotEntry{Name: h.Name, Version: h.Version, Status: h.Status})
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		o.log.Warnw("failed to marshal status snapshot", "error", err)
		return
	}
	if err := os.WriteFile(o.cfg.StatusSnapshotPath, data, 0o600); err != nil {
		o.log.Warnw("failed to write status snapshot", "path", o.cfg.StatusSnapshotPath, "error", err)
	}
}
