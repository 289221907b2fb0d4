// Package handlers implements the Gin handlers for the orchestrator's
// read-only debug API, following the same thin handler-delegates-to-
// service shape as the teacher's internal/handlers.
package handlers

import "github.com/kubev2v/guest-extension-agent/internal/services"

// Handler holds the services backing the debug API's endpoints.
type Handler struct {
	statusSrv *services.StatusService
}

func NewHandler(statusSrv *services.StatusService) *Handler {
	return &Handler{statusSrv: statusSrv}
}
