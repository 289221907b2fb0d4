// Package paths resolves the on-disk layout for a single handler (§4.4).
package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kubev2v/guest-extension-agent/internal/models"
)

const dirModeSensitive = 0o700

// Paths resolves every on-disk location belonging to one handler.
type Paths struct {
	libRoot string
	extLog  string
	id      models.HandlerIdentity
}

// New builds a Paths resolver for a handler under libRoot, with a shared
// (across versions) log directory rooted at extLogRoot (§4.4).
func New(libRoot, extLogRoot string, id models.HandlerIdentity) Paths {
	return Paths{libRoot: libRoot, extLog: extLogRoot, id: id}
}

func (p Paths) FullName() string { return p.id.FullName() }

// Base is <lib>/Name-Version/.
func (p Paths) Base() string {
	return filepath.Join(p.libRoot, p.id.FullName())
}

// Config is <lib>/Name-Version/config/.
func (p Paths) Config() string { return filepath.Join(p.Base(), "config") }

// StatusDir is <lib>/Name-Version/status/.
func (p Paths) StatusDir() string { return filepath.Join(p.Base(), "status") }

// HandlerStateFile is config/HandlerState.
func (p Paths) HandlerStateFile() string { return filepath.Join(p.Config(), "HandlerState") }

// HandlerStatusFile is config/HandlerStatus.
func (p Paths) HandlerStatusFile() string { return filepath.Join(p.Config(), "HandlerStatus") }

// SettingsFile is config/<seq>.settings.
func (p Paths) SettingsFile(seq int) string {
	return filepath.Join(p.Config(), fmt.Sprintf("%d.settings", seq))
}

// StatusFile is status/<seq>.status.
func (p Paths) StatusFile(seq int) string {
	return filepath.Join(p.StatusDir(), fmt.Sprintf("%d.status", seq))
}

// HeartbeatFile is <lib>/Name-Version/heartbeat.log.
func (p Paths) HeartbeatFile() string { return filepath.Join(p.Base(), "heartbeat.log") }

// Manifest is HandlerManifest.json.
func (p Paths) Manifest() string { return filepath.Join(p.Base(), "HandlerManifest.json") }

// Env is HandlerEnvironment.json.
func (p Paths) Env() string { return filepath.Join(p.Base(), "HandlerEnvironment.json") }

// Package is <lib>/Name-Version.zip.
func (p Paths) Package() string { return p.Base() + ".zip" }

// LogDir is <extlog>/Name/, shared across versions of the same handler
// name (§4.4).
func (p Paths) LogDir() string { return filepath.Join(p.extLog, p.id.Name) }

// MrSeq is the per-handler "most recent sequence" marker copied verbatim
// across upgrades (GLOSSARY, §4.1 step 2).
func (p Paths) MrSeq() string { return filepath.Join(p.Base(), "mrseq") }

// InitLayout creates config/ and status/ with restrictive permissions and
// adds the user-execute bit to every file already under base (§4.4).
func (p Paths) InitLayout() error {
	if err := os.MkdirAll(p.Config(), dirModeSensitive); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.MkdirAll(p.StatusDir(), dirModeSensitive); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}
	if err := os.MkdirAll(p.LogDir(), dirModeSensitive); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	return p.addExecuteBit()
}

func (p Paths) addExecuteBit() error {
	return filepath.Walk(p.Base(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		mode := info.Mode()
		if mode&0o100 == 0 {
			return os.Chmod(path, mode|0o100)
		}
		return nil
	})
}

// Remove deletes the entire base directory tree for this handler (used by
// uninstall and cleanup, §4.1).
func (p Paths) Remove() error {
	return os.RemoveAll(p.Base())
}
