// Package downloader implements version decision and package retrieval
// for a handler (§4.2).
package downloader

import (
	"fmt"

	"github.com/kubev2v/guest-extension-agent/internal/models"
	"github.com/kubev2v/guest-extension-agent/internal/version"
)

// Decision is the outcome of resolving a goal-state request against the
// catalog of available packages (§4.2).
type Decision struct {
	Package        models.Package
	WorkingVersion string
	IsUpgrade      bool
	Found          bool
}

// DecideVersion implements the version-decision routine.
//
// Packages are sorted ascending by version; for enable targets the
// selected package is the LAST one (i.e. the greatest) whose version
// satisfies the requested glob family (§9 "open question: confirmed").
// For uninstall/disabled targets the installed package is used verbatim,
// with no upgrade semantics.
func DecideVersion(pkgs []models.Package, installedVersion string, target models.TargetState, requested string) (Decision, error) {
	sorted := make([]models.Package, len(pkgs))
	copy(sorted, pkgs)
	sortPackages(sorted)

	var installedPkg *models.Package
	if installedVersion != "" {
		for i := range sorted {
			if sorted[i].Version == installedVersion {
				installedPkg = &sorted[i]
				break
			}
		}
	}

	if target == models.TargetUninstall || target == models.TargetDisabled {
		if installedPkg == nil {
			return Decision{}, nil
		}
		return Decision{Package: *installedPkg, WorkingVersion: installedPkg.Version, IsUpgrade: false, Found: true}, nil
	}

	req, err := version.ParseRequest(requested)
	if err != nil {
		return Decision{}, fmt.Errorf("parse requested version %q: %w", requested, err)
	}

	var selected *models.Package
	for i := range sorted {
		v, err := version.Parse(sorted[i].Version)
		if err != nil {
			continue
		}
		if req.Matches(v) {
			selected = &sorted[i] // keep overwriting: ascending order means last match is greatest
		}
	}
	if selected == nil {
		return Decision{}, nil
	}

	isUpgrade := installedPkg == nil || installedPkg.Version != selected.Version
	return Decision{Package: *selected, WorkingVersion: selected.Version, IsUpgrade: isUpgrade, Found: true}, nil
}

func sortPackages(pkgs []models.Package) {
	for i := 1; i < len(pkgs); i++ {
		for j := i; j > 0; j-- {
			vj, errJ := version.Parse(pkgs[j].Version)
			vjm1, errJm1 := version.Parse(pkgs[j-1].Version)
			if errJ != nil || errJm1 != nil || !vj.LessThan(vjm1) {
				break
			}
			pkgs[j], pkgs[j-1] = pkgs[j-1], pkgs[j]
		}
	}
}
