package models

import (
	"fmt"
	"strings"
)

// TargetState is the goal-state disposition requested for a handler (§3).
type TargetState string

const (
	TargetEnabled   TargetState = "enabled"
	TargetDisabled  TargetState = "disabled"
	TargetUninstall TargetState = "uninstall"
)

// ParseTargetState validates a goal-state target string (§3: "any other
// target is an error").
func ParseTargetState(s string) (TargetState, error) {
	switch TargetState(s) {
	case TargetEnabled, TargetDisabled, TargetUninstall:
		return TargetState(s), nil
	default:
		return "", fmt.Errorf("invalid target state: %s", s)
	}
}

// HandlerState is the persisted lifecycle state of an installed handler
// (§3). Transitions are driven exclusively by the lifecycle runner.
type HandlerState string

const (
	HandlerStateNotInstalled HandlerState = "NotInstalled"
	HandlerStateInstalled    HandlerState = "Installed"
	HandlerStateEnabled      HandlerState = "Enabled"
	HandlerStateFailed       HandlerState = "Failed"
)

// StatusValue is the aggregate handler-status enum surfaced to the control
// plane (§3).
type StatusValue string

const (
	StatusReady        StatusValue = "Ready"
	StatusNotReady     StatusValue = "NotReady"
	StatusInstalling   StatusValue = "Installing"
	StatusUnresponsive StatusValue = "Unresponsive"
)

// ExtensionStatusValue is the per-extension status enum an extension
// writes into its own status file (§3).
type ExtensionStatusValue string

const (
	ExtStatusTransitioning ExtensionStatusValue = "transitioning"
	ExtStatusError         ExtensionStatusValue = "error"
	ExtStatusSuccess       ExtensionStatusValue = "success"
	ExtStatusWarning       ExtensionStatusValue = "warning"
)

// IsTerminal reports whether v is one of the terminal extension statuses
// (§3: {error, success}).
func (v ExtensionStatusValue) IsTerminal() bool {
	return v == ExtStatusError || v == ExtStatusSuccess
}

// HandlerIdentity is the (Name, Version) pair identifying a handler on
// disk (§3). Name contains no '-'; Version is a dotted numeric sequence.
type HandlerIdentity struct {
	Name    string
	Version string
}

// FullName is the Name-Version on-disk directory form.
func (h HandlerIdentity) FullName() string {
	return fmt.Sprintf("%s-%s", h.Name, h.Version)
}

// ParseFullName splits a "Name-Version" directory/zip basename back into
// its identity. Name itself never contains '-', so the last '-' in the
// string is the separator.
func ParseFullName(fullName string) (HandlerIdentity, error) {
	idx := strings.LastIndex(fullName, "-")
	if idx <= 0 || idx == len(fullName)-1 {
		return HandlerIdentity{}, fmt.Errorf("malformed handler full name: %s", fullName)
	}
	return HandlerIdentity{Name: fullName[:idx], Version: fullName[idx+1:]}, nil
}

// Substatus is a nested status entry inside an extension status file (§3).
type Substatus struct {
	Name            string `json:"name"`
	Status          string `json:"status"`
	Code            int    `json:"code"`
	FormattedMessage *FormattedMessage `json:"formattedMessage,omitempty"`
}

// FormattedMessage carries a localized message (§4.5).
type FormattedMessage struct {
	Lang    string `json:"lang"`
	Message string `json:"message"`
}

// ExtensionStatus is the parsed, validated content of status/<seq>.status
// (§3, §4.5).
type ExtensionStatus struct {
	SeqNo                    int                  `json:"-"`
	Status                   ExtensionStatusValue `json:"status"`
	Code                     int                  `json:"code"`
	Message                  string               `json:"formattedMessage,omitempty"`
	Operation                string               `json:"operation,omitempty"`
	ConfigurationAppliedTime string               `json:"configurationAppliedTime,omitempty"`
	Substatus                []Substatus          `json:"substatus,omitempty"`
}

// Heartbeat is the parsed content of heartbeat.log (§3, §6).
type Heartbeat struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HandlerStatus is the aggregate status persisted in config/HandlerStatus
// and surfaced to the control plane (§3).
type HandlerStatus struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Status     StatusValue       `json:"status"`
	Code       int               `json:"code"`
	Message    string            `json:"message"`
	Extensions []ExtensionStatus `json:"extensions,omitempty"`
}
