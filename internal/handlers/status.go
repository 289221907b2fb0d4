package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/kubev2v/guest-extension-agent/api/v1"
)

const (
	defaultPassLimit = 20
	maxPassLimit     = 200
)

// GetStatus returns the last aggregate status snapshot.
// GET /api/v1/status
func (h *Handler) GetStatus(c *gin.Context) {
	snap, err := h.statusSrv.Snapshot(c.Request.Context())
	if err != nil {
		zap.S().Named("status_handler").Errorw("failed to read status snapshot", "error", err)
		c.JSON(http.StatusInternalServerError, v1.ErrorResponse{Error: "failed to read status snapshot"})
		return
	}
	c.JSON(http.StatusOK, v1.NewStatusResponseFromModel(snap))
}

// GetPasses returns the most recent reconciliation-pass history.
// GET /api/v1/passes
func (h *Handler) GetPasses(c *gin.Context) {
	limit := defaultPassLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
			if limit > maxPassLimit {
				limit = maxPassLimit
			}
		}
	}

	recs, err := h.statusSrv.Passes(c.Request.Context(), limit)
	if err != nil {
		zap.S().Named("status_handler").Errorw("failed to list pass history", "error", err)
		c.JSON(http.StatusInternalServerError, v1.ErrorResponse{Error: "failed to list pass history"})
		return
	}
	c.JSON(http.StatusOK, v1.NewPassHistoryResponseFromModel(recs))
}

// Register wires the handler's routes into the /api/v1 group.
func Register(router *gin.RouterGroup, h *Handler) {
	router.GET("/status", h.GetStatus)
	router.GET("/passes", h.GetPasses)
}
