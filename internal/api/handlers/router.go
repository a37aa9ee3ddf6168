package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/config"
	"github.com/langchou/carshare/internal/metrics"
	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/service"
	"github.com/langchou/carshare/internal/session"
	"github.com/langchou/carshare/pkg/ws"
)

// UpstreamAPI handlers 直接调用的上游接口
type UpstreamAPI interface {
	service.CarAPI
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Users(ctx context.Context) ([]models.User, error)
	CreateCar(ctx context.Context, req models.CreateCarData) (*models.Car, error)
	RemoveCar(ctx context.Context, carID, adminID string) error
	CarCost(ctx context.Context, carID string) (*models.StatsData, error)
	BreakerState() string
}

// TripLedger 行程账本查询
type TripLedger interface {
	GetBySessionID(ctx context.Context, sessionID string) (*models.Trip, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Trip, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	StatsByUser(ctx context.Context, userID string) (*models.StatsData, error)
}

// Handler HTTP 处理器
type Handler struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	api      UpstreamAPI
	resolver *session.Resolver
	sessions *service.SessionService
	stats    *service.StatsService
	health   *service.HealthMonitor
	trips    TripLedger
	wsHub    *ws.Hub
	upgrader websocket.Upgrader
}

// NewHandler 创建处理器，trips 和 wsHub 可为 nil
func NewHandler(
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
	api UpstreamAPI,
	resolver *session.Resolver,
	sessions *service.SessionService,
	stats *service.StatsService,
	health *service.HealthMonitor,
	trips TripLedger,
	wsHub *ws.Hub,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		api:      api,
		resolver: resolver,
		sessions: sessions,
		stats:    stats,
		health:   health,
		trips:    trips,
		wsHub:    wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(RequestID(), RequestLogger(h.logger), h.Metrics(), SecurityHeaders())

	// API 路由
	api := r.Group("/api")
	{
		// 认证
		api.POST("/auth/login", h.Login)
		api.POST("/auth/register", h.Register)
		api.POST("/auth/logout", h.Logout)

		authed := api.Group("", RequireUser())

		// 车辆
		authed.GET("/cars", h.ListCars)
		authed.POST("/cars", h.CreateCar)
		authed.GET("/cars/:id", h.GetCar)
		authed.DELETE("/cars/:id/admin", h.RemoveCar)
		authed.GET("/cars/:id/sessions", h.ListCarSessions)
		authed.GET("/cars/:id/active", h.GetCarActiveSession)
		authed.GET("/cars/:id/stats", h.GetCarStats)
		authed.GET("/users", h.ListUsers)

		// 行程
		authed.GET("/sessions", h.ListSessions)
		authed.GET("/sessions/active", h.GetActiveSession)
		authed.POST("/sessions/start", h.StartSession)
		authed.POST("/sessions/stop", h.StopSession)

		// 统计
		authed.GET("/balance", h.GetBalance)
		authed.GET("/trips", h.ListTrips)
		authed.GET("/trips/:session_id", h.GetTrip)
	}

	// WebSocket
	r.GET("/ws", RequireUser(), h.HandleWebSocket)

	// 健康检查与指标
	r.GET("/health", h.HealthCheck)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}
