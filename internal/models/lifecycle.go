package models

// PhaseOutcome is a tagged-variant result for a single lifecycle command
// invocation (§9 "Patterns requiring re-architecture": model phase
// outcomes as ok | failed(code, message) | updateFailed(alreadyReported),
// adapted from the teacher's InspectorStatus{State, Error} shape).
type PhaseOutcome struct {
	Kind    PhaseOutcomeKind
	Message string
	Err     error
}

type PhaseOutcomeKind string

const (
	PhaseOK           PhaseOutcomeKind = "ok"
	PhaseFailed       PhaseOutcomeKind = "failed"
	PhaseUpdateFailed PhaseOutcomeKind = "update_failed"
)

func OK() PhaseOutcome {
	return PhaseOutcome{Kind: PhaseOK}
}

func Failed(err error) PhaseOutcome {
	return PhaseOutcome{Kind: PhaseFailed, Err: err, Message: err.Error()}
}

func UpdateFailed(err error) PhaseOutcome {
	return PhaseOutcome{Kind: PhaseUpdateFailed, Err: err, Message: err.Error()}
}

func (p PhaseOutcome) Success() bool { return p.Kind == PhaseOK }

// Package identifies a single mirror-hosted handler package version (§3,
// §4.2: "List all packages; sort ascending by version").
type Package struct {
	Version string
	URIs    []string
}

// HandlerGoalState is the per-handler slice of the control plane's goal
// state document (§3, §6: get_ext_handlers).
type HandlerGoalState struct {
	Name             string
	RequestedVersion string // glob-capable, e.g. "1.2.*"
	Target           TargetState
	SortKey          int // -1: no dependency participation (§4.1)
	Extensions       []ExtensionGoalState
	Packages         []Package
}

// ExtensionGoalState is one sub-extension's configuration within a
// handler's goal state (§4.6).
type ExtensionGoalState struct {
	Name           string
	SequenceNumber *int // nil if the goal state carries no sequence number
	PublicSettings string
}

// VMStatus is the aggregate report posted back through the protocol
// (§4.7).
type VMStatus struct {
	Handlers []HandlerStatus
}
