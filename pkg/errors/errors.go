// Package errors defines the typed error taxonomy the extension handler
// orchestrator reports through handler status and telemetry.
//
// Every error here carries a numeric code from a fixed taxonomy so callers
// can persist {code, message} into HandlerStatus without inspecting error
// strings.
package errors

import "fmt"

// Code is a plugin-status error code. The specific values mirror the
// publisher-facing taxonomy the control plane expects in HandlerStatus.code.
type Code int

const (
	CodeDefault                          Code = -1
	CodePluginManifestDownloadError       Code = 1001
	CodePluginSettingsStatusInvalid       Code = 1002
	CodePluginManifestNotFound            Code = 1003
	CodePluginManifestDeserializationErr  Code = 1004
	CodePluginEnableProcessingFailed      Code = 1005
	CodePluginDisableProcessingFailed     Code = 1006
	CodePluginInstallProcessingFailed     Code = 1007
	CodePluginUpdateProcessingFailed      Code = 1008
	CodePluginUninstallProcessingFailed   Code = 1009
	CodeProtocolError                     Code = 1010
	CodeProtocolNotFoundError             Code = 1011
)

// ProtocolError wraps a failure talking to the control-plane protocol
// collaborator (§6). It is not specific to any handler.
type ProtocolError struct {
	Op  string
	Err error
}

func NewProtocolError(op string, err error) *ProtocolError {
	return &ProtocolError{Op: op, Err: err}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Code() Code { return CodeProtocolError }

// ProtocolNotFoundError signals the control plane has no record of the
// resource being queried (e.g. artifacts profile absent).
type ProtocolNotFoundError struct {
	Resource string
}

func NewProtocolNotFoundError(resource string) *ProtocolNotFoundError {
	return &ProtocolNotFoundError{Resource: resource}
}

func (e *ProtocolNotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *ProtocolNotFoundError) Code() Code { return CodeProtocolNotFoundError }

// ExtensionError is the generic per-handler error kind (§7), carrying the
// code it was constructed with. The phase-specific kinds below are separate
// types that each supply their own code.
type ExtensionError struct {
	Name    string
	Message string
	code    Code
}

func NewExtensionError(name, message string, code Code) *ExtensionError {
	return &ExtensionError{Name: name, Message: message, code: code}
}

func (e *ExtensionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *ExtensionError) Code() Code { return e.code }

// ExtensionDownloadError is raised when the Downloader exhausts its retry
// budget (§4.2, S4). It additionally feeds the Download ErrorGate.
type ExtensionDownloadError struct {
	Name    string
	Message string
}

func NewExtensionDownloadError(name, message string) *ExtensionDownloadError {
	return &ExtensionDownloadError{Name: name, Message: message}
}

func (e *ExtensionDownloadError) Error() string {
	return fmt.Sprintf("%s: download failed: %s", e.Name, e.Message)
}

func (e *ExtensionDownloadError) Code() Code { return CodePluginManifestDownloadError }

// ExtensionOperationError wraps a lifecycle command that either failed to
// launch (spawn failure) or exited non-zero, carrying the phase's default
// error code (§4.3).
type ExtensionOperationError struct {
	Name    string
	Phase   string
	Message string
	code    Code
}

func NewExtensionOperationError(name, phase, message string, code Code) *ExtensionOperationError {
	return &ExtensionOperationError{Name: name, Phase: phase, Message: message, code: code}
}

func (e *ExtensionOperationError) Error() string {
	return fmt.Sprintf("%s: %s failed: %s", e.Name, e.Phase, e.Message)
}

func (e *ExtensionOperationError) Code() Code { return e.code }

// ExtensionUpdateError marks a failure of the OLD version's command during
// an update sequence (§4.1 step 1/4). The old version has already reported
// the failure locally, so this error must not be re-reported to telemetry
// by the new version (§7).
type ExtensionUpdateError struct {
	Name          string
	Message       string
	AlreadyReported bool
}

func NewExtensionUpdateError(name, message string) *ExtensionUpdateError {
	return &ExtensionUpdateError{Name: name, Message: message, AlreadyReported: true}
}

func (e *ExtensionUpdateError) Error() string {
	return fmt.Sprintf("%s: update failed: %s", e.Name, e.Message)
}

func (e *ExtensionUpdateError) Code() Code { return CodePluginUpdateProcessingFailed }

// Coded is implemented by every error kind above so dispatch logic can
// extract {code, message} uniformly without a type switch per kind.
type Coded interface {
	error
	Code() Code
}

// CodeOf extracts the taxonomy code from err, defaulting to CodeDefault for
// unrecognized error kinds (§7: "unknown/other").
func CodeOf(err error) Code {
	if c, ok := err.(Coded); ok {
		return c.Code()
	}
	return CodeDefault
}
