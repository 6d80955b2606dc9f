package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/service"
	"github.com/pulseplan/go-nudge-service/internal/shared/errors"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
)

// PreferencesHandler handles notification preference requests
type PreferencesHandler struct {
	checkpoints *service.CheckpointService
	log         *logger.Logger
}

// NewPreferencesHandler creates a new preferences handler
func NewPreferencesHandler(checkpoints *service.CheckpointService, log *logger.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		checkpoints: checkpoints,
		log:         log,
	}
}

// UpdateNotifications enables or disables a user's daily checkpoint
// notifications. Enabling schedules the recurring jobs; disabling removes
// them.
func (h *PreferencesHandler) UpdateNotifications(c *gin.Context) {
	email := c.Param("email")

	var req domain.UpdateNotificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	var err error
	if *req.Enabled {
		err = h.checkpoints.EnableDailyNotifications(c.Request.Context(), email)
	} else {
		err = h.checkpoints.DisableDailyNotifications(c.Request.Context(), email)
	}
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.IsUserNotFound(err):
			status = http.StatusNotFound
		case errors.HasCode(err, errors.CodeConfiguration):
			status = http.StatusUnprocessableEntity
		}
		h.log.Error("Failed to update notification preference", "error", err, "user", email)
		c.JSON(status, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Notification preference updated",
		"email":   email,
		"enabled": *req.Enabled,
	})
}

// RegisterDeviceToken binds a push device token to a user
func (h *PreferencesHandler) RegisterDeviceToken(c *gin.Context) {
	email := c.Param("email")

	var req domain.RegisterDeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	if err := h.checkpoints.RegisterDeviceToken(c.Request.Context(), email, req.DeviceToken); err != nil {
		h.log.Error("Failed to register device token", "error", err, "user", email)
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to register device token", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Device token registered",
		"email":   email,
	})
}
