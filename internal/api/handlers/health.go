package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/carshare/pkg/ws"
)

// HandleWebSocket 处理 WebSocket 连接
func (h *Handler) HandleWebSocket(c *gin.Context) {
	if h.wsHub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WebSocket no disponible"})
		return
	}

	userID := currentUser(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	h.sessions.Watch(userID)
	client := ws.NewClient(h.wsHub, conn, userID)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	wsClients := 0
	if h.wsHub != nil {
		wsClients = h.wsHub.ClientCount()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"upstream":   h.health.Status(),
		"breaker":    h.api.BreakerState(),
		"ws_clients": wsClients,
		"watching":   len(h.sessions.Watched()),
	})
}
