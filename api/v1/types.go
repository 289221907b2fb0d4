// Package v1 defines the wire types returned by the orchestrator's debug
// HTTP API, adapted from the teacher's api/v1 (the oapi-codegen generated
// VM/agent-status types are replaced with the handler-status shapes this
// domain reports; the hand-written NewXFromModel conversion-function
// pattern is unchanged).
package v1

import (
	"time"

	"github.com/kubev2v/guest-extension-agent/internal/models"
)

// StatusResponse is the last aggregate status snapshot the orchestrator
// wrote to waagent_status.json (§4.7).
type StatusResponse struct {
	AgentName             string           `json:"agentName"`
	RunningVersion        string           `json:"runningVersion"`
	GoalStateAgentVersion string           `json:"goalStateAgentVersion"`
	Distro                string           `json:"distro"`
	PythonVersion         string           `json:"pythonVersion"`
	Timestamp             string           `json:"timestamp"`
	Handlers              []HandlerStatus  `json:"handlers"`
}

// HandlerStatus is one handler's flattened entry in StatusResponse.
type HandlerStatus struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// NewStatusResponseFromModel converts the internal snapshot model into the
// wire response.
func NewStatusResponseFromModel(snap models.StatusSnapshot) StatusResponse {
	handlers := make([]HandlerStatus, 0, len(snap.Handlers))
	for _, h := range snap.Handlers {
		handlers = append(handlers, HandlerStatus{
			Name:    h.Name,
			Version: h.Version,
			Status:  string(h.Status),
		})
	}
	return StatusResponse{
		AgentName:             snap.AgentName,
		RunningVersion:        snap.RunningVersion,
		GoalStateAgentVersion: snap.GoalStateAgentVersion,
		Distro:                snap.Distro,
		PythonVersion:         snap.PythonVersion,
		Timestamp:             snap.Timestamp,
		Handlers:              handlers,
	}
}

// PassHistoryResponse wraps the list of recent reconciliation passes.
type PassHistoryResponse struct {
	Passes []PassRecord `json:"passes"`
}

// PassRecord is one reconciliation-pass audit row (SPEC_FULL.md §C.7).
type PassRecord struct {
	ID           int64     `json:"id"`
	StartedAt    time.Time `json:"startedAt"`
	Etag         string    `json:"etag"`
	HandlerCount int       `json:"handlerCount"`
	Outcome      string    `json:"outcome"`
	Message      string    `json:"message,omitempty"`
}

// NewPassHistoryResponseFromModel converts the stored pass records into the
// wire response.
func NewPassHistoryResponseFromModel(recs []models.PassRecord) PassHistoryResponse {
	out := make([]PassRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, PassRecord{
			ID:           r.ID,
			StartedAt:    r.StartedAt,
			Etag:         r.Etag,
			HandlerCount: r.HandlerCount,
			Outcome:      r.Outcome,
			Message:      r.Message,
		})
	}
	return PassHistoryResponse{Passes: out}
}

// ErrorResponse is the JSON body returned for any handler-level failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
