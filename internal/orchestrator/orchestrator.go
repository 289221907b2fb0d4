// Package orchestrator implements the top-level reconciliation loop
// (§4.1): it fetches goal state, drives each handler toward its target,
// reports aggregate VM status, and sweeps orphaned packages/directories.
package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kubev2v/guest-extension-agent/internal/cgroups"
	"github.com/kubev2v/guest-extension-agent/internal/downloader"
	"github.com/kubev2v/guest-extension-agent/internal/errorgate"
	"github.com/kubev2v/guest-extension-agent/internal/handler"
	"github.com/kubev2v/guest-extension-agent/internal/lifecycle"
	"github.com/kubev2v/guest-extension-agent/internal/models"
	"github.com/kubev2v/guest-extension-agent/internal/protocol"
	"github.com/kubev2v/guest-extension-agent/internal/telemetry"
	"github.com/kubev2v/guest-extension-agent/internal/version"
)

// PassDeadline is the default per-pass wait-for-completion budget (§4.1).
const PassDeadline = 90 * time.Minute

// PollInterval is the wait-for-completion polling cadence (§4.1).
const PollInterval = 5 * time.Second

// PassRecorder persists a row of the reconciliation-pass audit trail
// (supplemental feature, SPEC_FULL.md §C.7). Optional: nil disables it.
type PassRecorder interface {
	Record(ctx context.Context, rec models.PassRecord) error
}

// Config holds the orchestrator's per-agent, per-pass settings.
type Config struct {
	LibRoot                 string
	ExtLogRoot              string
	ExtensionsEnabled       bool
	OverprovisioningEnabled bool
	AgentName               string
	RunningVersion          string
	GoalStateAgentVersion   string
	Distro                  string
	PythonVersion           string
	PassDeadline            time.Duration
	StatusSnapshotPath      string
}

// Orchestrator is the per-process owner of one reconciliation pass at a
// time (§5: not reentrant).
type Orchestrator struct {
	cfg      Config
	client   protocol.Client
	executor cgroups.Executor
	sink     telemetry.Sink
	runner   *lifecycle.Runner
	dl       *downloader.Downloader
	recorder PassRecorder

	downloadGate *errorgate.Gate
	reportGate   *errorgate.Gate
	lastEtag     string

	log *zap.SugaredLogger

	now   func() time.Time
	sleep func(time.Duration)
}

func New(cfg Config, client protocol.Client, executor cgroups.Executor, sink telemetry.Sink, recorder PassRecorder) *Orchestrator {
	if cfg.PassDeadline == 0 {
		cfg.PassDeadline = PassDeadline
	}
	if cfg.StatusSnapshotPath == "" {
		cfg.StatusSnapshotPath = filepath.Join(filepath.Dir(cfg.LibRoot), "waagent_status.json")
	}
	return &Orchestrator{
		cfg:          cfg,
		client:       client,
		executor:     executor,
		sink:         sink,
		runner:       lifecycle.New(executor, sink),
		dl:           downloader.New(cfg.LibRoot, client),
		recorder:     recorder,
		downloadGate: errorgate.New(15*time.Minute, 3),
		reportGate:   errorgate.New(15*time.Minute, 3),
		log:          zap.S().Named("orchestrator"),
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// Run performs one reconciliation pass (§4.1).
func (o *Orchestrator) Run(ctx context.Context) error {
	passStart := o.now()

	handlers, etag, err := o.client.GetExtHandlers(ctx)
	if err != nil {
		o.downloadGate.Incr()
		if o.downloadGate.IsTriggered() {
			o.sink.AddEvent(telemetry.Event{Op: telemetry.OpGetArtifactsExtended, IsSuccess: false, Message: err.Error()})
			o.downloadGate.Reset()
		} else {
			o.log.Warnw("failed to fetch goal state", "error", err)
		}
		o.recordPass(ctx, passStart, etag, 0, "error", err.Error())
		return nil
	}

	outcome := "skipped"
	if len(handlers) > 0 && o.processingAllowed(ctx) {
		o.processHandlers(ctx, handlers, etag, passStart)
		o.lastEtag = etag
		outcome = "ok"
	}

	o.reportStatus(ctx, handlers)
	o.sweep()

	o.recordPass(ctx, passStart, etag, len(handlers), outcome, "")
	return nil
}

func (o *Orchestrator) recordPass(ctx context.Context, start time.Time, etag string, count int, outcome, message string) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, models.PassRecord{StartedAt: start, Etag: etag, HandlerCount: count, Outcome: outcome, Message: message}); err != nil {
		o.log.Warnw("failed to persist pass record", "error", err)
	}
}

// processingAllowed implements the processing gate (§4.1).
func (o *Orchestrator) processingAllowed(ctx context.Context) bool {
	if !o.cfg.ExtensionsEnabled {
		return false
	}
	if o.cfg.OverprovisioningEnabled && o.client.SupportsOverprovisioning(ctx) {
		profile, err := o.client.GetArtifactsProfile(ctx)
		if err == nil && profile != nil && profile.OnHold {
			return false
		}
	}
	return true
}

// processHandlers drives every handler in dependency order, gating
// cross-level progression on terminal success (§4.1 "Dependency
// ordering").
func (o *Orchestrator) processHandlers(ctx context.Context, handlers []models.HandlerGoalState, etag string, passStart time.Time) {
	sorted := make([]models.HandlerGoalState, len(handlers))
	copy(sorted, handlers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SortKey < sorted[j].SortKey })

	maxLevel := -1
	for _, h := range sorted {
		if h.SortKey > maxLevel {
			maxLevel = h.SortKey
		}
	}

	deadline := passStart.Add(o.cfg.PassDeadline)

	for _, hg := range sorted {
		inst, ok := o.dispatchHandler(ctx, hg, etag)
		if !ok {
			continue
		}

		if hg.SortKey >= 0 && hg.SortKey < maxLevel {
			if !o.waitForCompletion(ctx, inst, hg.Extensions, deadline) {
				o.log.Warnw("handler did not reach terminal success within deadline; aborting remainder of pass", "handler", hg.Name, "sortKey", hg.SortKey)
				return
			}
		}
	}
}

// installedVersion implements I4: the greatest version of name whose
// HandlerState != NotInstalled.
func (o *Orchestrator) installedVersion(name string) string {
	entries, err := os.ReadDir(o.cfg.LibRoot)
	if err != nil {
		return ""
	}
	var best string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := models.ParseFullName(e.Name())
		if err != nil || id.Name != name {
			continue
		}
		inst := handler.New(o.cfg.LibRoot, o.cfg.ExtLogRoot, id, o.sink)
		if inst.State.GetState() == models.HandlerStateNotInstalled {
			continue
		}
		if best == "" || versionGreater(id.Version, best) {
			best = id.Version
		}
	}
	return best
}

// anyVersionOnDisk returns the greatest version of name present on disk
// regardless of HandlerState, so status reporting can still surface a
// persisted HandlerStatus for a handler that failed before ever reaching
// Installed (e.g. no package matched the request, §4.1 P8).
func (o *Orchestrator) anyVersionOnDisk(name string) string {
	entries, err := os.ReadDir(o.cfg.LibRoot)
	if err != nil {
		return ""
	}
	var best string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := models.ParseFullName(e.Name())
		if err != nil || id.Name != name {
			continue
		}
		if best == "" || versionGreater(id.Version, best) {
			best = id.Version
		}
	}
	return best
}

func versionGreater(a, b string) bool {
	va, errA := version.Parse(a)
	vb, errB := version.Parse(b)
	if errA != nil || errB != nil {
		return a > b
	}
	return va.GreaterThan(vb)
}

// sweep implements cleanupOutdatedHandlers (§4.1, P7, S6).
func (o *Orchestrator) sweep() {
	entries, err := os.ReadDir(o.cfg.LibRoot)
	if err != nil {
		return
	}

	var orphanZips []string
	var staleDirs []models.HandlerIdentity

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			id, err := models.ParseFullName(name)
			if err != nil {
				continue
			}
			inst := handler.New(o.cfg.LibRoot, o.cfg.ExtLogRoot, id, o.sink)
			if inst.State.GetState() == models.HandlerStateNotInstalled {
				staleDirs = append(staleDirs, id)
			}
			continue
		}
		if !strings.HasSuffix(name, ".zip") {
			continue
		}
		base := strings.TrimSuffix(name, ".zip")
		if _, statErr := os.Stat(filepath.Join(o.cfg.LibRoot, base)); os.IsNotExist(statErr) {
			orphanZips = append(orphanZips, filepath.Join(o.cfg.LibRoot, name))
		}
	}

	for _, z := range orphanZips {
		if err := os.Remove(z); err != nil {
			o.log.Warnw("failed to remove orphaned package", "path", z, "error", err)
		}
	}
	for _, id := range staleDirs {
		inst := handler.New(o.cfg.LibRoot, o.cfg.ExtLogRoot, id, o.sink)
		if err := inst.Remove(); err != nil {
			o.log.Warnw("failed to remove uninstalled handler directory", "handler", id.FullName(), "error", err)
			continue
		}
		_ = os.Remove(inst.Paths.Package())
	}
}
