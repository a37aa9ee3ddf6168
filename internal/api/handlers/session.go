package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/service"
	"github.com/langchou/carshare/internal/validation"
)

// ListSessions 全部行程（最新在前，含费用）
func (h *Handler) ListSessions(c *gin.Context) {
	views, err := h.stats.AllSessions(c.Request.Context())
	if err != nil {
		h.logger.Warn("Failed to list sessions", zap.Error(err))
		respondDegraded(c, []service.SessionView{}, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

// GetActiveSession 当前用户进行中的行程
func (h *Handler) GetActiveSession(c *gin.Context) {
	userID := currentUser(c)
	active, err := h.sessions.ActiveSession(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusOK, gin.H{
			"data":  nil,
			"state": h.sessions.State(userID),
			"error": messageFor(err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  active,
		"state": h.sessions.State(userID),
	})
}

// StartSession 开始行程，car_id 可选
func (h *Handler) StartSession(c *gin.Context) {
	var req validation.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}

	userID := currentUser(c)
	started, err := h.sessions.StartSession(c.Request.Context(), userID, req.CarID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data":    started,
		"state":   h.sessions.State(userID),
		"message": "Viaje iniciado",
	})
}

// StopSession 结束当前行程
func (h *Handler) StopSession(c *gin.Context) {
	userID := currentUser(c)
	ended, err := h.sessions.StopSession(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    ended,
		"state":   h.sessions.State(userID),
		"message": "Viaje finalizado",
	})
}
