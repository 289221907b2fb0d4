// Package state implements PersistentState: reading and writing
// HandlerState and HandlerStatus files, and migrating the legacy
// handler_state/ layout (§3, §4.8).
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kubev2v/guest-extension-agent/internal/models"
	"github.com/kubev2v/guest-extension-agent/internal/paths"
)

// Store reads/writes persisted handler state for a single handler.
type Store struct {
	paths paths.Paths
}

func New(p paths.Paths) Store {
	return Store{paths: p}
}

// GetState returns the persisted HandlerState, NotInstalled if the file is
// absent (§3).
func (s Store) GetState() models.HandlerState {
	data, err := os.ReadFile(s.paths.HandlerStateFile())
	if err != nil {
		return models.HandlerStateNotInstalled
	}
	return models.HandlerState(trimLine(data))
}

// SetState persists a HandlerState transition (§3).
func (s Store) SetState(st models.HandlerState) error {
	if err := os.MkdirAll(s.paths.Config(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.paths.HandlerStateFile(), []byte(string(st)), 0o600)
}

// GetStatus reads the persisted HandlerStatus, or (nil, false) if absent
// (§4.7: "if missing, skip").
func (s Store) GetStatus() (*models.HandlerStatus, bool) {
	data, err := os.ReadFile(s.paths.HandlerStatusFile())
	if err != nil {
		return nil, false
	}
	var st models.HandlerStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false
	}
	return &st, true
}

// SetStatus persists the aggregate HandlerStatus.
func (s Store) SetStatus(st models.HandlerStatus) error {
	if err := os.MkdirAll(s.paths.Config(), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal handler status: %w", err)
	}
	return os.WriteFile(s.paths.HandlerStatusFile(), data, 0o600)
}

func trimLine(data []byte) string {
	s := string(data)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}

// MigrateLegacy moves <lib>/handler_state/<FullName>/{state,status} into
// <lib>/<FullName>/config/Handler{State,Status} when the legacy directory
// exists and the destination doesn't already exist, then removes the
// legacy directory. Never fatal: failures are logged and skipped (§4.8).
func MigrateLegacy(libRoot string) {
	legacyRoot := filepath.Join(libRoot, "handler_state")
	entries, err := os.ReadDir(legacyRoot)
	if err != nil {
		return // no legacy directory; nothing to do
	}

	log := zap.S().Named("state_migration")
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		fullName := entry.Name()
		migrateOne(libRoot, legacyRoot, fullName, "state", "HandlerState", log)
		migrateOne(libRoot, legacyRoot, fullName, "status", "HandlerStatus", log)
	}

	if err := os.RemoveAll(legacyRoot); err != nil {
		log.Warnw("failed to remove legacy handler_state directory", "error", err)
	}
}

func migrateOne(libRoot, legacyRoot, fullName, srcName, destName string, log *zap.SugaredLogger) {
	src := filepath.Join(legacyRoot, fullName, srcName)
	if _, err := os.Stat(src); err != nil {
		return
	}
	destDir := filepath.Join(libRoot, fullName, "config")
	dest := filepath.Join(destDir, destName)
	if _, err := os.Stat(dest); err == nil {
		return // destination already present; don't overwrite
	}
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		log.Warnw("failed to create config dir during legacy migration", "handler", fullName, "error", err)
		return
	}
	data, err := os.ReadFile(src)
	if err != nil {
		log.Warnw("failed to read legacy state file", "handler", fullName, "file", srcName, "error", err)
		return
	}
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		log.Warnw("failed to write migrated state file", "handler", fullName, "file", destName, "error", err)
		return
	}
	_ = os.Remove(src)
}
