package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pulseplan/go-nudge-service/internal/domain"
	"github.com/pulseplan/go-nudge-service/internal/repository"
	"github.com/pulseplan/go-nudge-service/internal/shared/errors"
	"github.com/pulseplan/go-nudge-service/internal/shared/logger"
)

// HistoryHandler handles send-history requests
type HistoryHandler struct {
	history *repository.HistoryRepository
	log     *logger.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(history *repository.HistoryRepository, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		log:     log,
	}
}

// GetHistory lists a user's checkpoint send attempts, newest first. Sent,
// failed and suppressed attempts all appear, each with its reason.
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	var req domain.GetHistoryRequest
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

	records, total, err := h.history.FindByUser(c.Request.Context(), req.Email, req.Page, req.PageSize)
	if err != nil {
		h.log.Error("Failed to list send history", "error", err, "user", req.Email)
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to list send history", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      records,
		"total":     total,
		"page":      req.Page,
		"page_size": req.PageSize,
	})
}
