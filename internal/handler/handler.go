// Package handler implements HandlerInstance (§4.6, §3): it binds a
// goal-state handler spec to its on-disk identity and exposes the
// operations the orchestrator composes into enable/disable/uninstall/
// update choreography.
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kubev2v/guest-extension-agent/internal/manifest"
	"github.com/kubev2v/guest-extension-agent/internal/models"
	"github.com/kubev2v/guest-extension-agent/internal/paths"
	"github.com/kubev2v/guest-extension-agent/internal/state"
	"github.com/kubev2v/guest-extension-agent/internal/statusparser"
	"github.com/kubev2v/guest-extension-agent/internal/telemetry"
)

const schemaVersion = "1.0"

// Instance binds one (Name, Version) handler identity to its on-disk tree
// (§3: "Each HandlerInstance exclusively owns its on-disk tree").
type Instance struct {
	ID    models.HandlerIdentity
	Paths paths.Paths
	State state.Store
	Sink  telemetry.Sink
}

// New builds an Instance for id under libRoot/extLogRoot, reporting
// sequence-number mismatches (§4.6) through sink.
func New(libRoot, extLogRoot string, id models.HandlerIdentity, sink telemetry.Sink) Instance {
	p := paths.New(libRoot, extLogRoot, id)
	return Instance{ID: id, Paths: p, State: state.New(p), Sink: sink}
}

// Exists reports whether the handler's base directory is present on disk.
func (i Instance) Exists() bool {
	_, err := os.Stat(i.Paths.Base())
	return err == nil
}

// LoadManifest reads HandlerManifest.json for this instance.
func (i Instance) LoadManifest() (manifest.Manifest, error) {
	return manifest.Load(i.Paths.Manifest())
}

// InitLayout creates config/status/log directories and writes
// HandlerEnvironment.json (§4.4).
func (i Instance) InitLayout() error {
	if err := i.Paths.InitLayout(); err != nil {
		return err
	}
	return i.writeEnvironmentFile()
}

func (i Instance) writeEnvironmentFile() error {
	doc := []handlerEnvironmentEntry{{
		Name:    i.ID.Name,
		Version: schemaVersion,
		HandlerEnvironment: handlerEnvironmentBody{
			LogFolder:     i.Paths.LogDir(),
			ConfigFolder:  i.Paths.Config(),
			StatusFolder:  i.Paths.StatusDir(),
			HeartbeatFile: i.Paths.HeartbeatFile(),
		},
	}}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal handler environment: %w", err)
	}
	return os.WriteFile(i.Paths.Env(), data, 0o600)
}

type handlerEnvironmentEntry struct {
	Name               string                 `json:"name"`
	Version            string                 `json:"version"`
	HandlerEnvironment handlerEnvironmentBody `json:"handlerEnvironment"`
}

type handlerEnvironmentBody struct {
	LogFolder     string `json:"logFolder"`
	ConfigFolder  string `json:"configFolder"`
	StatusFolder  string `json:"statusFolder"`
	HeartbeatFile string `json:"heartbeatFile"`
}

// WriteSettings persists one config/<seq>.settings file per extension in
// the goal state (§4.4, §6).
func (i Instance) WriteSettings(extensions []models.ExtensionGoalState) error {
	if err := os.MkdirAll(i.Paths.Config(), 0o700); err != nil {
		return err
	}
	for idx, ext := range extensions {
		seq := i.SequenceNumber(ext, idx)
		doc := settingsFile{}
		doc.RuntimeSettings = []runtimeSettingsEntry{{HandlerSettings: handlerSettingsBody{PublicSettings: json.RawMessage(ext.PublicSettings)}}}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal settings for seq %d: %w", seq, err)
		}
		if err := os.WriteFile(i.Paths.SettingsFile(seq), data, 0o600); err != nil {
			return err
		}
	}
	return nil
}

type settingsFile struct {
	RuntimeSettings []runtimeSettingsEntry `json:"runtimeSettings"`
}

type runtimeSettingsEntry struct {
	HandlerSettings handlerSettingsBody `json:"handlerSettings"`
}

type handlerSettingsBody struct {
	PublicSettings json.RawMessage `json:"publicSettings,omitempty"`
}

// SequenceNumber resolves the sequence number for one sub-extension
// (§4.6): the goal state's own number if present (emitting a mismatch
// event if it disagrees with the largest on-disk .settings file),
// otherwise the largest .settings prefix on disk, otherwise -1.
func (i Instance) SequenceNumber(ext models.ExtensionGoalState, index int) int {
	onDisk := i.largestSettingsSeq()

	if ext.SequenceNumber != nil {
		if onDisk >= 0 && onDisk != *ext.SequenceNumber && i.Sink != nil {
			i.Sink.AddEvent(telemetry.Event{
				Name: i.ID.Name, Version: i.ID.Version, Op: telemetry.OpSequenceNumberMismatch, IsSuccess: false,
				Message: fmt.Sprintf("on-disk seq %d != goal-state seq %d", onDisk, *ext.SequenceNumber),
			})
		}
		return *ext.SequenceNumber
	}
	if onDisk >= 0 {
		return onDisk
	}
	return -1
}

func (i Instance) largestSettingsSeq() int {
	entries, err := os.ReadDir(i.Paths.Config())
	if err != nil {
		return -1
	}
	largest := -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".settings") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, ".settings"))
		if err != nil {
			continue
		}
		if n > largest {
			largest = n
		}
	}
	return largest
}

// GetExtHandlingStatus returns the extension status for seq, or (status,
// false) when there is no canonical status file and no goal-state
// sequence number at all — the "null status" case (§4.1, P8).
func (i Instance) GetExtHandlingStatus(seq int) (models.ExtensionStatus, bool) {
	if seq < 0 {
		return models.ExtensionStatus{}, false
	}
	return statusparser.ParseStatusFile(i.Paths.StatusFile(seq), seq), true
}

// CollectStatus assembles the aggregate HandlerStatus for reporting
// (§4.7): persisted HandlerStatus plus per-extension status and, when the
// manifest asks for it, heartbeat-derived overrides.
func (i Instance) CollectStatus(extensions []models.ExtensionGoalState) (models.HandlerStatus, bool) {
	persisted, ok := i.State.GetStatus()
	if !ok {
		return models.HandlerStatus{}, false
	}
	st := *persisted

	if i.State.GetState() == models.HandlerStateNotInstalled {
		return st, true
	}

	st.Extensions = nil
	for idx, ext := range extensions {
		seq := i.SequenceNumber(ext, idx)
		if es, present := i.GetExtHandlingStatus(seq); present {
			st.Extensions = append(st.Extensions, es)
		}
	}

	m, err := i.LoadManifest()
	if err == nil && m.ReportHeartbeat {
		hb, unresponsive, hbErr := statusparser.ParseHeartbeat(i.Paths.HeartbeatFile())
		switch {
		case unresponsive:
			st.Status = models.StatusUnresponsive
		case hbErr == nil:
			if v := models.StatusValue(hb.Status); v != "" {
				st.Status = v
			}
		}
	}
	return st, true
}

// CopyUpgradeArtifacts copies mrseq and every status/*.status file from
// old into this (new) instance's directories (§4.1 update step 2).
func (i Instance) CopyUpgradeArtifacts(old Instance) error {
	if err := os.MkdirAll(i.Paths.StatusDir(), 0o700); err != nil {
		return err
	}
	if err := copyIfExists(old.Paths.MrSeq(), i.Paths.MrSeq()); err != nil {
		return err
	}

	entries, err := os.ReadDir(old.Paths.StatusDir())
	if err != nil {
		return nil // nothing to copy
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".status") {
			continue
		}
		if err := copyIfExists(filepath.Join(old.Paths.StatusDir(), e.Name()), filepath.Join(i.Paths.StatusDir(), e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyIfExists(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return nil
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// Remove deletes this handler's entire on-disk tree (§4.1 uninstall, §4.1
// update step 5).
func (i Instance) Remove() error {
	return i.Paths.Remove()
}

// NowISOZ is the ISO-Z timestamp helper shared by the snapshot writer
// (§4.7).
func NowISOZ(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
