// Package manifest reads HandlerManifest.json and exposes lifecycle
// command strings and behavior flags (§4, §6).
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
)

// UpdateModeWithInstall is the default/explicit directive requiring
// install to run after update/uninstall during an upgrade (GLOSSARY).
const UpdateModeWithInstall = "updatewithinstall"

type handlerManifestDoc struct {
	InstallCommand           string `json:"installCommand"`
	UninstallCommand         string `json:"uninstallCommand"`
	UpdateCommand            string `json:"updateCommand"`
	EnableCommand            string `json:"enableCommand"`
	DisableCommand           string `json:"disableCommand"`
	ReportHeartbeat          bool   `json:"reportHeartbeat"`
	UpdateMode               string `json:"updateMode"`
	ContinueOnUpdateFailure  bool   `json:"continueOnUpdateFailure"`
}

type manifestFile struct {
	HandlerManifest handlerManifestDoc `json:"handlerManifest"`
}

// Manifest is the parsed, defaulted content of HandlerManifest.json (§6).
type Manifest struct {
	InstallCommand          string
	UninstallCommand        string
	UpdateCommand           string
	EnableCommand           string
	DisableCommand          string
	ReportHeartbeat         bool
	UpdateMode              string
	ContinueOnUpdateFailure bool
}

// Load reads and validates HandlerManifest.json at path.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var doc manifestFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return Manifest{}, fmt.Errorf("deserialize manifest: %w", err)
	}
	m := Manifest{
		InstallCommand:          doc.HandlerManifest.InstallCommand,
		UninstallCommand:        doc.HandlerManifest.UninstallCommand,
		UpdateCommand:           doc.HandlerManifest.UpdateCommand,
		EnableCommand:           doc.HandlerManifest.EnableCommand,
		DisableCommand:          doc.HandlerManifest.DisableCommand,
		ReportHeartbeat:         doc.HandlerManifest.ReportHeartbeat,
		UpdateMode:              doc.HandlerManifest.UpdateMode,
		ContinueOnUpdateFailure: doc.HandlerManifest.ContinueOnUpdateFailure,
	}
	if m.UpdateMode == "" {
		m.UpdateMode = UpdateModeWithInstall
	}
	return m, nil
}

// RunsInstallAfterUpdate reports whether update_with_install should invoke
// install (§4.1 update sequence step 6, GLOSSARY).
func (m Manifest) RunsInstallAfterUpdate() bool {
	return m.UpdateMode == "" || equalFoldASCII(m.UpdateMode, UpdateModeWithInstall)
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
