// Package lifecycle implements the LifecycleRunner (§4.3): it executes
// publisher-supplied install/enable/disable/uninstall/update commands with
// per-phase timeouts and environment variables, and records the resulting
// HandlerState transition.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kubev2v/guest-extension-agent/internal/cgroups"
	"github.com/kubev2v/guest-extension-agent/internal/models"
	"github.com/kubev2v/guest-extension-agent/internal/paths"
	"github.com/kubev2v/guest-extension-agent/internal/state"
	"github.com/kubev2v/guest-extension-agent/internal/telemetry"
	svcerrors "github.com/kubev2v/guest-extension-agent/pkg/errors"
)

// Phase identifies one of the five lifecycle commands (§4.3).
type Phase string

const (
	PhaseInstall   Phase = "install"
	PhaseUninstall Phase = "uninstall"
	PhaseEnable    Phase = "enable"
	PhaseDisable   Phase = "disable"
	PhaseUpdate    Phase = "update"
)

var phaseTimeouts = map[Phase]time.Duration{
	PhaseEnable:    300 * time.Second,
	PhaseDisable:   900 * time.Second,
	PhaseInstall:   900 * time.Second,
	PhaseUpdate:    900 * time.Second,
	PhaseUninstall: 300 * time.Second,
}

var phaseErrorCodes = map[Phase]svcerrors.Code{
	PhaseEnable:    svcerrors.CodePluginEnableProcessingFailed,
	PhaseDisable:   svcerrors.CodePluginDisableProcessingFailed,
	PhaseInstall:   svcerrors.CodePluginInstallProcessingFailed,
	PhaseUpdate:    svcerrors.CodePluginUpdateProcessingFailed,
	PhaseUninstall: svcerrors.CodePluginUninstallProcessingFailed,
}

var phaseOp = map[Phase]telemetry.Op{
	PhaseEnable:    telemetry.OpEnable,
	PhaseDisable:   telemetry.OpDisable,
	PhaseInstall:   telemetry.OpInstall,
	PhaseUpdate:    telemetry.OpUpdate,
	PhaseUninstall: telemetry.OpUninstall,
}

// Runner executes lifecycle phases for a single handler.
type Runner struct {
	executor cgroups.Executor
	sink     telemetry.Sink
	log      *zap.SugaredLogger
}

func New(executor cgroups.Executor, sink telemetry.Sink) *Runner {
	return &Runner{executor: executor, sink: sink, log: zap.S().Named("lifecycle")}
}

// Run executes command for phase inside the handler's base directory,
// records a telemetry event for its duration, and on failure transitions
// the handler to Failed when phase is update (§4.3).
func (r *Runner) Run(ctx context.Context, phase Phase, id models.HandlerIdentity, p paths.Paths, st state.Store, command string, extraEnv map[string]string) models.PhaseOutcome {
	if strings.TrimSpace(command) == "" {
		return models.OK() // manifest declares no command for this phase
	}

	if err := r.executor.CreateCgroup(id.FullName()); err != nil {
		r.log.Warnw("failed to create cgroup", "handler", id.FullName(), "error", err)
	}
	defer func() {
		if err := r.executor.RemoveCgroup(id.FullName()); err != nil {
			r.log.Warnw("failed to remove cgroup", "handler", id.FullName(), "error", err)
		}
	}()

	env := buildEnv(id, extraEnv)
	req := cgroups.StartRequest{
		Name:    id.FullName(),
		Command: joinCommand(p.Base(), command),
		Cwd:     p.Base(),
		Timeout: phaseTimeouts[phase],
		Env:     env,
		Stdout:  filepath.Join(p.Base(), fmt.Sprintf(".%s.stdout", phase)),
		Stderr:  filepath.Join(p.Base(), fmt.Sprintf(".%s.stderr", phase)),
	}

	start := time.Now()
	_, err := r.executor.Start(ctx, req)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		code := phaseErrorCodes[phase]
		if phase == PhaseUpdate {
			// §7: the update command runs against the OLD version's
			// directory (or the new one, on an upgrade) inside a choreography
			// whose outer status has already been reported by the handler it
			// ran against; re-emitting a telemetry event here would be a
			// duplicate, so ExtensionUpdateError suppresses it.
			updateErr := svcerrors.NewExtensionUpdateError(id.Name, err.Error())
			if setErr := st.SetState(models.HandlerStateFailed); setErr != nil {
				r.log.Warnw("failed to persist Failed state", "handler", id.FullName(), "error", setErr)
			}
			return models.UpdateFailed(updateErr)
		}
		opErr := svcerrors.NewExtensionOperationError(id.Name, string(phase), err.Error(), code)
		r.sink.AddEvent(telemetry.Event{Name: id.Name, Version: id.Version, Op: phaseOp[phase], IsSuccess: false, Message: opErr.Error(), Duration: &duration})
		return models.Failed(opErr)
	}

	r.sink.AddEvent(telemetry.Event{Name: id.Name, Version: id.Version, Op: phaseOp[phase], IsSuccess: true, Duration: &duration})
	return models.OK()
}

// buildEnv inherits the current process environment and adds the fixed
// and phase-specific variables (§4.3, §6).
func buildEnv(id models.HandlerIdentity, extra map[string]string) []string {
	env := os.Environ()
	env = append(env,
		"AZURE_GUEST_AGENT_EXTENSION_PATH="+id.FullName(),
		"AZURE_GUEST_AGENT_EXTENSION_VERSION="+id.Version,
	)
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// joinCommand joins the manifest command's executable onto baseDir,
// stripping any leading path separators from it: some packagers begin
// commands with "/", which must NOT be interpreted as root-absolute
// (§4.3, historical quirk). Arguments after the executable are left
// untouched. The command runs with Cwd already set to baseDir.
func joinCommand(baseDir, command string) string {
	command = strings.TrimSpace(command)
	parts := strings.SplitN(command, " ", 2)
	exe := strings.TrimLeft(parts[0], "/\\")
	full := filepath.Join(baseDir, exe)
	if len(parts) == 2 {
		return full + " " + parts[1]
	}
	return full
}
