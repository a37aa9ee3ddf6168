package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/api/carshare"
	"github.com/langchou/carshare/internal/config"
	"github.com/langchou/carshare/internal/metrics"
	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/pkg/ws"
)

// HealthAPI 上游健康检查
type HealthAPI interface {
	Health(ctx context.Context) (*carshare.HealthData, error)
}

// ConnectionState 本服务 MQTT 连接
type ConnectionState interface {
	IsConnected() bool
}

// HealthMonitor 定时检查后端和 MQTT 状态
type HealthMonitor struct {
	logger   *zap.Logger
	api      HealthAPI
	notifier ConnectionState
	hub      Broadcaster
	poller   *Poller

	mu     sync.RWMutex
	status models.HealthStatus
}

// NewHealthMonitor 创建健康检查服务，notifier 和 hub 可为 nil
func NewHealthMonitor(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, api HealthAPI, notifier ConnectionState, hub Broadcaster) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HealthMonitor{
		logger:   logger,
		api:      api,
		notifier: notifier,
		hub:      hub,
	}
	h.poller = NewPoller(PollerConfig{
		Name:          "health",
		Interval:      cfg.PollIntervalHealth,
		BackoffFactor: cfg.PollBackoffFactor,
		BackoffMax:    cfg.PollBackoffMax,
	}, h.Check, logger, m)
	return h
}

// Start 启动轮询
func (h *HealthMonitor) Start(ctx context.Context) {
	h.poller.Start(ctx)
}

// Stop 停止轮询
func (h *HealthMonitor) Stop() {
	h.poller.Stop()
}

// Status 最近一次检查结果
func (h *HealthMonitor) Status() models.HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	status := h.status
	status.NotifierOnline = h.notifier != nil && h.notifier.IsConnected()
	return status
}

// Check 检查一次；后端不可达时返回错误（用于退避）
func (h *HealthMonitor) Check(ctx context.Context) error {
	data, err := h.api.Health(ctx)
	now := time.Now()

	var status models.HealthStatus
	status.LastCheck = &now

	switch {
	case err == nil:
		status.BackendConnected = true
		status.MqttConnected = data.MqttConnected

	case errors.Is(err, carshare.ErrUnexpectedResponse) || carshare.IsRejected(err):
		// 后端有响应但结构不符
		status.BackendConnected = true
		status.Error = carshare.ErrUnexpectedResponse.Error()
		err = nil

	default:
		status.Error = carshare.UserMessage(err)
	}

	h.mu.Lock()
	prev := h.status
	h.status = status
	h.mu.Unlock()

	if prev.BackendConnected != status.BackendConnected || prev.MqttConnected != status.MqttConnected || prev.Error != status.Error {
		h.logger.Info("Backend health changed",
			zap.Bool("backend_connected", status.BackendConnected),
			zap.Bool("mqtt_connected", status.MqttConnected),
			zap.String("error", status.Error))
		if h.hub != nil {
			h.hub.BroadcastMessage(ws.MsgTypeHealthUpdate, h.Status())
		}
	}
	return err
}
