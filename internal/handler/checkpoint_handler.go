package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/service"
	"github.com/pulseplan/go-nudge-service/internal/shared/errors"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
)

// CheckpointHandler handles manual checkpoint send requests
type CheckpointHandler struct {
	checkpoints *service.CheckpointService
	log         *logger.Logger
}

// NewCheckpointHandler creates a new checkpoint handler
func NewCheckpointHandler(checkpoints *service.CheckpointService, log *logger.Logger) *CheckpointHandler {
	return &CheckpointHandler{
		checkpoints: checkpoints,
		log:         log,
	}
}

// SendNow triggers an immediate checkpoint send, bypassing the cron trigger.
// The send still passes the owner gate and the device slot lock, so it is
// safe to race a scheduled send.
func (h *CheckpointHandler) SendNow(c *gin.Context) {
	var req domain.SendCheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	err := h.checkpoints.SendCheckpointNow(c.Request.Context(), req.Email, req.Checkpoint)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.HasCode(err, errors.CodeValidation):
			status = http.StatusBadRequest
		case errors.IsUserNotFound(err):
			status = http.StatusNotFound
		case errors.IsTokenNotFound(err) || errors.IsNotificationDisabled(err):
			status = http.StatusConflict
		}
		h.log.Warn("Manual checkpoint send failed", "error", err, "user", req.Email, "checkpoint", req.Checkpoint)
		c.JSON(status, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Checkpoint processed",
		"email":      req.Email,
		"checkpoint": req.Checkpoint,
	})
}
