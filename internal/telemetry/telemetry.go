// Package telemetry defines the event/telemetry sink collaborator (§6,
// out of scope per spec.md but required as an interface the orchestrator
// drives) and a default zap-backed implementation that flushes
// asynchronously through the shared worker-pool scheduler, the same
// pattern the teacher's internal/services.Collector used to wrap
// pkg/scheduler.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kubev2v/guest-extension-agent/pkg/scheduler"
)

// Op is a symbolic telemetry operation name (§6).
type Op string

const (
	OpDownload               Op = "Download"
	OpInstall                Op = "Install"
	OpEnable                 Op = "Enable"
	OpDisable                Op = "Disable"
	OpUninstall              Op = "UnInstall"
	OpUpdate                 Op = "Update"
	OpExtensionProcessing    Op = "ExtensionProcessing"
	OpGetArtifactsExtended   Op = "GetArtifactExtended"
	OpReportStatusExtended   Op = "ReportStatusExtended"
	OpSequenceNumberMismatch Op = "SequenceNumberMismatch"
)

// Event is one emitted telemetry record (§6: add_event).
type Event struct {
	ID        string
	Name      string
	Version   string
	Op        Op
	IsSuccess bool
	Message   string
	Duration  *int64 // milliseconds, optional
}

// Sink is the telemetry collaborator consumed by the orchestrator and its
// subcomponents.
type Sink interface {
	AddEvent(ev Event)
}

// ZapSink logs every event through zap and, when a scheduler is supplied,
// dispatches the log call asynchronously so the reconciliation pass (§5:
// strictly serial) is never blocked on telemetry I/O.
type ZapSink struct {
	logger    *zap.SugaredLogger
	scheduler *scheduler.Scheduler
}

// NewZapSink builds a Sink. sched may be nil, in which case events are
// logged synchronously.
func NewZapSink(sched *scheduler.Scheduler) *ZapSink {
	return &ZapSink{logger: zap.S().Named("telemetry"), scheduler: sched}
}

func (z *ZapSink) AddEvent(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if z.scheduler == nil {
		z.logEvent(ev)
		return
	}
	z.scheduler.AddWork(func(ctx context.Context) (any, error) {
		z.logEvent(ev)
		return nil, nil
	})
}

func (z *ZapSink) logEvent(ev Event) {
	fields := []any{
		"id", ev.ID, "name", ev.Name, "version", ev.Version,
		"op", ev.Op, "success", ev.IsSuccess, "message", ev.Message,
	}
	if ev.Duration != nil {
		fields = append(fields, "duration_ms", *ev.Duration)
	}
	if ev.IsSuccess {
		z.logger.Infow("extension event", fields...)
	} else {
		z.logger.Warnw("extension event", fields...)
	}
}
