package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/repository"
)

var errLedgerDisabled = errors.New("El historial de viajes no está habilitado")

// GetBalance 当前用户的费用统计
func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.stats.Balance(c.Request.Context(), currentUser(c))
	if err != nil {
		h.logger.Warn("Balance degraded", zap.String("user_id", currentUser(c)), zap.Error(err))
		respondDegraded(c, balance, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balance})
}

// ListTrips 已记录的行程账本（分页）
func (h *Handler) ListTrips(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	if h.trips == nil {
		c.JSON(http.StatusOK, gin.H{
			"data":       []*models.Trip{},
			"error":      errLedgerDisabled.Error(),
			"pagination": gin.H{"page": page, "per_page": perPage, "total": 0},
		})
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c)

	trips, err := h.trips.ListByUser(ctx, userID, perPage, offset)
	if err != nil {
		h.logger.Error("Failed to list trips", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo obtener el historial de viajes"})
		return
	}
	if trips == nil {
		trips = []*models.Trip{}
	}

	total, _ := h.trips.CountByUser(ctx, userID)
	resp := gin.H{
		"data": trips,
		"pagination": gin.H{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	}
	if stats, err := h.trips.StatsByUser(ctx, userID); err == nil {
		resp["stats"] = stats
	}

	c.JSON(http.StatusOK, resp)
}

// GetTrip 单条行程记录，只能查看自己的行程
func (h *Handler) GetTrip(c *gin.Context) {
	if h.trips == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errLedgerDisabled.Error()})
		return
	}

	trip, err := h.trips.GetBySessionID(c.Request.Context(), c.Param("session_id"))
	if errors.Is(err, repository.ErrTripNotFound) || (err == nil && trip.UserID != currentUser(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Viaje no encontrado"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get trip", zap.String("session_id", c.Param("session_id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo obtener el historial de viajes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trip})
}
