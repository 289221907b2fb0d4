package orchestrator

import (
	"context"
	"fmt"

	"github.com/kubev2v/guest-extension-agent/internal/downloader"
	"github.com/kubev2v/guest-extension-agent/internal/handler"
	"github.com/kubev2v/guest-extension-agent/internal/lifecycle"
	"github.com/kubev2v/guest-extension-agent/internal/models"
	"github.com/kubev2v/guest-extension-agent/internal/telemetry"
	"github.com/kubev2v/guest-extension-agent/internal/version"
	svcerrors "github.com/kubev2v/guest-extension-agent/pkg/errors"
)

// dispatchHandler resolves the working version for hg and drives it toward
// its target (§4.1 "Per-handler dispatch"). The returned bool is false when
// no instance could be resolved (e.g. no package matches the request) and
// the handler must be skipped entirely, including from wait-gating.
func (o *Orchestrator) dispatchHandler(ctx context.Context, hg models.HandlerGoalState, etag string) (handler.Instance, bool) {
	installed := o.installedVersion(hg.Name)

	decision, err := downloader.DecideVersion(hg.Packages, installed, hg.Target, hg.RequestedVersion)
	if err != nil || !decision.Found {
		o.reportNoMatchingVersion(hg, installed, err)
		return handler.Instance{}, false
	}

	id := models.HandlerIdentity{Name: hg.Name, Version: decision.WorkingVersion}
	inst := handler.New(o.cfg.LibRoot, o.cfg.ExtLogRoot, id, o.sink)

	// Idempotence (§4.1, P1): an unchanged goal state for a handler that
	// isn't being upgraded has already been fully processed; only the
	// status reported later in the pass needs to reflect it again.
	if !decision.IsUpgrade && etag != "" && etag == o.lastEtag {
		return inst, true
	}

	switch hg.Target {
	case models.TargetEnabled:
		o.handleEnable(ctx, inst, hg, decision, installed)
	case models.TargetDisabled:
		o.handleDisable(ctx, inst)
	case models.TargetUninstall:
		o.handleUninstall(ctx, inst)
	default:
		o.log.Warnw("unrecognized target state", "handler", hg.Name, "target", hg.Target)
	}
	return inst, true
}

// reportNoMatchingVersion persists a failed HandlerStatus against the
// requested (unresolved) identity when no package in the catalog satisfies
// the goal state's request.
func (o *Orchestrator) reportNoMatchingVersion(hg models.HandlerGoalState, installed string, err error) {
	version := installed
	if version == "" {
		version = hg.RequestedVersion
	}
	id := models.HandlerIdentity{Name: hg.Name, Version: version}
	inst := handler.New(o.cfg.LibRoot, o.cfg.ExtLogRoot, id, o.sink)

	msg := fmt.Sprintf("no package satisfies requested version %q", hg.RequestedVersion)
	if err != nil {
		msg = err.Error()
	}
	_ = inst.State.SetStatus(models.HandlerStatus{
		Name: hg.Name, Version: version, Status: models.StatusNotReady,
		Code: int(svcerrors.CodePluginManifestNotFound), Message: msg,
	})
	o.sink.AddEvent(telemetry.Event{Name: hg.Name, Version: version, Op: telemetry.OpExtensionProcessing, IsSuccess: false, Message: msg})
}

// handleEnable drives hg toward TargetEnabled (§4.1 steps 2-4): it installs
// (directly, or via the update sequence when a different version is already
// installed), writes settings, and runs the enable command.
func (o *Orchestrator) handleEnable(ctx context.Context, inst handler.Instance, hg models.HandlerGoalState, decision downloader.Decision, installedVersion string) {
	state := inst.State.GetState()
	enableEnv := map[string]string{}

	if state == models.HandlerStateNotInstalled {
		if err := o.dl.Fetch(ctx, hg.Name, decision.Package, inst.Paths.Base()); err != nil {
			_ = inst.State.SetStatus(models.HandlerStatus{Name: hg.Name, Version: inst.ID.Version, Status: models.StatusNotReady, Code: int(svcerrors.CodeOf(err)), Message: err.Error()})
			o.sink.AddEvent(telemetry.Event{Name: hg.Name, Version: inst.ID.Version, Op: telemetry.OpDownload, IsSuccess: false, Message: err.Error()})
			o.downloadGate.Incr()
			return
		}
		if err := inst.InitLayout(); err != nil {
			o.log.Warnw("failed to initialize handler layout", "handler", inst.ID.FullName(), "error", err)
			return
		}

		if installedVersion == "" {
			if err := inst.WriteSettings(hg.Extensions); err != nil {
				o.log.Warnw("failed to write settings", "handler", inst.ID.FullName(), "error", err)
			}
			outcome := o.runner.Run(ctx, lifecycle.PhaseInstall, inst.ID, inst.Paths, inst.State, loadCommand(inst, lifecycle.PhaseInstall), nil)
			if outcome.Success() {
				_ = inst.State.SetState(models.HandlerStateInstalled)
			} else {
				_ = inst.State.SetStatus(models.HandlerStatus{Name: hg.Name, Version: inst.ID.Version, Status: models.StatusNotReady, Code: int(svcerrors.CodeOf(outcome.Err)), Message: outcome.Message})
				return
			}
		} else if installedVersion != inst.ID.Version {
			oldID := models.HandlerIdentity{Name: hg.Name, Version: installedVersion}
			oldInst := handler.New(o.cfg.LibRoot, o.cfg.ExtLogRoot, oldID, o.sink)
			if err := inst.WriteSettings(hg.Extensions); err != nil {
				o.log.Warnw("failed to write settings", "handler", inst.ID.FullName(), "error", err)
			}
			uninstallFailed, err := o.runUpdateSequence(ctx, oldInst, inst)
			if err != nil {
				_ = inst.State.SetStatus(models.HandlerStatus{Name: hg.Name, Version: inst.ID.Version, Status: models.StatusNotReady, Code: int(svcerrors.CodeOf(err)), Message: err.Error()})
				return
			}
			enableEnv["AZURE_GUEST_AGENT_UNINSTALL_FAILED"] = uninstallFailed
		}
	} else {
		if err := inst.WriteSettings(hg.Extensions); err != nil {
			o.log.Warnw("failed to write settings", "handler", inst.ID.FullName(), "error", err)
		}
	}

	outcome := o.runner.Run(ctx, lifecycle.PhaseEnable, inst.ID, inst.Paths, inst.State, loadCommand(inst, lifecycle.PhaseEnable), enableEnv)
	if outcome.Success() {
		_ = inst.State.SetState(models.HandlerStateEnabled)
		_ = inst.State.SetStatus(models.HandlerStatus{Name: hg.Name, Version: inst.ID.Version, Status: models.StatusReady, Message: "Plugin enabled"})
	} else {
		_ = inst.State.SetStatus(models.HandlerStatus{Name: hg.Name, Version: inst.ID.Version, Status: models.StatusNotReady, Code: int(svcerrors.CodeOf(outcome.Err)), Message: outcome.Message})
	}
}

// runUpdateSequence performs the six-step update choreography (§4.1 "update
// sequence"): disable old, copy artifacts, run update in the correct
// directory depending on upgrade vs. downgrade, uninstall old, remove old,
// and (when the manifest asks for it) install new. It returns the
// "0"/"1" uninstall-failed flag the caller must thread into the outer
// enable's environment (§4.1), and a non-nil error when the sequence must
// abort and leave the handler Failed (§3, §4.3).
func (o *Orchestrator) runUpdateSequence(ctx context.Context, old, newInst handler.Instance) (string, error) {
	oldManifest, err := old.LoadManifest()
	if err != nil {
		return "0", fmt.Errorf("load old manifest: %w", err)
	}
	newManifest, err := newInst.LoadManifest()
	if err != nil {
		return "0", fmt.Errorf("load new manifest: %w", err)
	}

	disableFailed := "0"
	outcome := o.runner.Run(ctx, lifecycle.PhaseDisable, old.ID, old.Paths, old.State, oldManifest.DisableCommand, nil)
	if !outcome.Success() {
		disableFailed = "1"
		if !newManifest.ContinueOnUpdateFailure {
			updateErr := svcerrors.NewExtensionUpdateError(old.ID.Name, outcome.Message)
			_ = newInst.State.SetState(models.HandlerStateFailed)
			return "0", updateErr
		}
	}

	if err := newInst.CopyUpgradeArtifacts(old); err != nil {
		o.log.Warnw("failed to copy upgrade artifacts", "handler", newInst.ID.FullName(), "error", err)
	}

	newV, errNew := version.Parse(newInst.ID.Version)
	oldV, errOld := version.Parse(old.ID.Version)
	isUpgrade := errNew != nil || errOld != nil || newV.GreaterThan(oldV)

	updateEnv := map[string]string{"VERSION": newInst.ID.Version, "AZURE_GUEST_AGENT_DISABLE_FAILED": disableFailed}
	var updateOutcome models.PhaseOutcome
	if isUpgrade {
		updateOutcome = o.runner.Run(ctx, lifecycle.PhaseUpdate, newInst.ID, newInst.Paths, newInst.State, newManifest.UpdateCommand, updateEnv)
	} else {
		// Downgrade quirk (§4.1): the update command still runs inside the
		// OLD version's directory, even though VERSION names the new one.
		updateOutcome = o.runner.Run(ctx, lifecycle.PhaseUpdate, old.ID, old.Paths, old.State, oldManifest.UpdateCommand, updateEnv)
	}
	if updateOutcome.Kind == models.PhaseUpdateFailed {
		// §3/§4.3: update failure aborts the remaining uninstall/remove/
		// install/enable steps and leaves the handler Failed; lifecycle.Run
		// already persisted HandlerState=Failed and suppressed telemetry
		// for this outcome, so nothing further is reported here.
		return "0", updateOutcome.Err
	}

	uninstallFailed := "0"
	uninstallOutcome := o.runner.Run(ctx, lifecycle.PhaseUninstall, old.ID, old.Paths, old.State, oldManifest.UninstallCommand, nil)
	if !uninstallOutcome.Success() {
		uninstallFailed = "1"
		if !newManifest.ContinueOnUpdateFailure {
			updateErr := svcerrors.NewExtensionUpdateError(old.ID.Name, uninstallOutcome.Message)
			_ = newInst.State.SetState(models.HandlerStateFailed)
			return uninstallFailed, updateErr
		}
	}
	if err := old.Remove(); err != nil {
		o.log.Warnw("failed to remove old handler directory", "handler", old.ID.FullName(), "error", err)
	}

	if newManifest.RunsInstallAfterUpdate() {
		installEnv := map[string]string{"AZURE_GUEST_AGENT_UNINSTALL_FAILED": uninstallFailed}
		o.runner.Run(ctx, lifecycle.PhaseInstall, newInst.ID, newInst.Paths, newInst.State, newManifest.InstallCommand, installEnv)
	}
	_ = newInst.State.SetState(models.HandlerStateInstalled)
	return uninstallFailed, nil
}

// handleDisable drives hg toward TargetDisabled (§4.1): an Enabled handler
// runs its disable command and reverts to Installed; anything else is a
// no-op.
func (o *Orchestrator) handleDisable(ctx context.Context, inst handler.Instance) {
	if inst.State.GetState() != models.HandlerStateEnabled {
		return
	}
	outcome := o.runner.Run(ctx, lifecycle.PhaseDisable, inst.ID, inst.Paths, inst.State, loadCommand(inst, lifecycle.PhaseDisable), nil)
	if outcome.Success() {
		_ = inst.State.SetState(models.HandlerStateInstalled)
		_ = inst.State.SetStatus(models.HandlerStatus{Name: inst.ID.Name, Version: inst.ID.Version, Status: models.StatusNotReady, Message: "Plugin disabled"})
	} else {
		_ = inst.State.SetStatus(models.HandlerStatus{Name: inst.ID.Name, Version: inst.ID.Version, Status: models.StatusNotReady, Code: int(svcerrors.CodeOf(outcome.Err)), Message: outcome.Message})
	}
}

// handleUninstall drives hg toward TargetUninstall (§4.1): disables first if
// currently enabled, runs uninstall (best-effort), and always removes the
// on-disk tree regardless of the command's outcome.
func (o *Orchestrator) handleUninstall(ctx context.Context, inst handler.Instance) {
	if !inst.Exists() {
		return
	}
	if inst.State.GetState() == models.HandlerStateEnabled {
		o.runner.Run(ctx, lifecycle.PhaseDisable, inst.ID, inst.Paths, inst.State, loadCommand(inst, lifecycle.PhaseDisable), nil)
	}
	o.runner.Run(ctx, lifecycle.PhaseUninstall, inst.ID, inst.Paths, inst.State, loadCommand(inst, lifecycle.PhaseUninstall), nil)
	if err := inst.Remove(); err != nil {
		o.log.Warnw("failed to remove handler directory during uninstall", "handler", inst.ID.FullName(), "error", err)
	}
}

// loadCommand reads the manifest for phase p and returns the matching
// command string, or "" (a no-op per lifecycle.Runner.Run) if the manifest
// cannot be read.
func loadCommand(inst handler.Instance, p lifecycle.Phase) string {
	m, err := inst.LoadManifest()
	if err != nil {
		return ""
	}
	switch p {
	case lifecycle.PhaseInstall:
		return m.InstallCommand
	case lifecycle.PhaseUninstall:
		return m.UninstallCommand
	case lifecycle.PhaseEnable:
		return m.EnableCommand
	case lifecycle.PhaseDisable:
		return m.DisableCommand
	case lifecycle.PhaseUpdate:
		return m.UpdateCommand
	default:
		return ""
	}
}
