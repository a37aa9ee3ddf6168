package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/service"
	"github.com/langchou/carshare/internal/validation"
)

// ListCars 当前用户管理和共享的车辆
func (h *Handler) ListCars(c *gin.Context) {
	cars, err := service.UserCars(c.Request.Context(), h.api, currentUser(c))
	if err != nil {
		h.logger.Warn("Failed to list cars", zap.String("user_id", currentUser(c)), zap.Error(err))
		respondDegraded(c, cars, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cars})
}

// CreateCar 创建车辆，当前用户为管理员
func (h *Handler) CreateCar(c *gin.Context) {
	var req validation.CarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}
	req.Normalize()
	if !bindValid(c, &req) {
		return
	}

	car, err := h.api.CreateCar(c.Request.Context(), req.ToCreateCar(currentUser(c)))
	if err != nil {
		h.logger.Warn("Failed to create car", zap.String("user_id", currentUser(c)), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": car})
}

// GetCar 获取车辆详情
func (h *Handler) GetCar(c *gin.Context) {
	car, err := h.api.Car(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": car})
}

// RemoveCar 管理员删除车辆
func (h *Handler) RemoveCar(c *gin.Context) {
	carID := c.Param("id")
	if err := h.api.RemoveCar(c.Request.Context(), carID, currentUser(c)); err != nil {
		h.logger.Warn("Failed to remove car", zap.String("car_id", carID), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Vehículo eliminado"})
}

// ListCarSessions 车辆的行程
func (h *Handler) ListCarSessions(c *gin.Context) {
	views, err := h.stats.CarSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDegraded(c, views, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

// GetCarActiveSession 车辆进行中的行程
func (h *Handler) GetCarActiveSession(c *gin.Context) {
	active, err := h.resolver.ActiveForCar(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDegraded(c, nil, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": active})
}

// GetCarStats 车辆统计，附带上游统计（可用时）
func (h *Handler) GetCarStats(c *gin.Context) {
	ctx := c.Request.Context()
	carID := c.Param("id")

	stats, err := h.stats.CarStats(ctx, carID)

	resp := gin.H{"data": stats}
	if upstream, cerr := h.api.CarCost(ctx, carID); cerr == nil {
		resp["upstream_stats"] = upstream
	} else {
		h.logger.Debug("Car cost unavailable", zap.String("car_id", carID), zap.Error(cerr))
	}
	if err != nil {
		_ = c.Error(err)
		resp["error"] = messageFor(err)
	}

	c.JSON(http.StatusOK, resp)
}

// ListUsers 可共享的用户
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.api.Users(c.Request.Context())
	if err != nil {
		respondDegraded(c, []models.User{}, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}

	c.JSON(http.StatusOK, gin.H{"data": users})
}
