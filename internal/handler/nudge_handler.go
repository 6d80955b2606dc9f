package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/repository"
	"github.com/pulseplan/go-nudge-service/internal/service"
	"github.com/pulseplan/go-nudge-service/internal/shared/errors"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
)

// NudgeHandler handles goal-linked reminder requests
type NudgeHandler struct {
	reminders *service.ReminderService
	nudges    *repository.NudgeRepository
	log       *logger.Logger
}

// NewNudgeHandler creates a new nudge handler
func NewNudgeHandler(reminders *service.ReminderService, nudges *repository.NudgeRepository, log *logger.Logger) *NudgeHandler {
	return &NudgeHandler{
		reminders: reminders,
		nudges:    nudges,
		log:       log,
	}
}

// DeriveReminders re-derives one-shot reminders from a goal's action items.
// Deterministic job ids make this safe to call repeatedly for one goal.
func (h *NudgeHandler) DeriveReminders(c *gin.Context) {
	goalID := c.Param("id")
	if goalID == "" {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("goal id is required", nil))
		return
	}

	scheduled, err := h.reminders.DeriveForGoal(c.Request.Context(), goalID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.IsGoalNotFound(err) {
			status = http.StatusNotFound
		}
		h.log.Error("Failed to derive reminders", "error", err, "goal_id", goalID)
		c.JSON(status, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Reminders derived",
		"goal_id":   goalID,
		"scheduled": scheduled,
	})
}

// GetNudges lists a user's goal-linked reminders, newest first
func (h *NudgeHandler) GetNudges(c *gin.Context) {
	var req domain.GetNudgesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	nudges, total, err := h.nudges.FindByUser(c.Request.Context(), req.Email, req.Status, req.Page, req.PageSize)
	if err != nil {
		h.log.Error("Failed to list nudges", "error", err, "user", req.Email)
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to list nudges", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      nudges,
		"total":     total,
		"page":      req.Page,
		"page_size": req.PageSize,
	})
}
