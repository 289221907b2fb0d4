// Package protocol defines the control-plane collaborator (§6): the wire
// protocol that supplies goal state and accepts VM status uploads. The
// wire format itself is explicitly out of scope (§1, §9: "inject a
// Context record ... no module-level singletons") — the orchestrator only
// depends on this interface, so a test double can stand in for the real
// protocol client in every internal/orchestrator test.
package protocol

import (
	"context"

	"github.com/kubev2v/guest-extension-agent/internal/models"
)

// HandlerPackages is the version/URI catalog for one handler name, as
// returned by get_ext_handler_pkgs (§6).
type HandlerPackages struct {
	Versions []models.Package
}

// ArtifactsProfile carries the overprovisioning on-hold flag (§4.1,
// GLOSSARY "Artifacts profile").
type ArtifactsProfile struct {
	OnHold bool
}

// Client is the set of operations the orchestrator consumes from the
// control-plane protocol (§6).
type Client interface {
	// GetExtHandlers returns the goal-state handler list and its etag.
	GetExtHandlers(ctx context.Context) (handlers []models.HandlerGoalState, etag string, err error)

	// SupportsOverprovisioning reports whether the protocol exposes an
	// artifacts profile at all.
	SupportsOverprovisioning(ctx context.Context) bool

	// GetArtifactsProfile returns nil when no profile is available.
	GetArtifactsProfile(ctx context.Context) (*ArtifactsProfile, error)

	GetExtHandlerPkgs(ctx context.Context, handlerName string) (HandlerPackages, error)

	DownloadExtHandlerPkg(ctx context.Context, uri, destFile string) error

	ReportVMStatus(ctx context.Context, status models.VMStatus) error

	ReportExtStatus(ctx context.Context, handlerName, extName string, status models.ExtensionStatus) error
}
