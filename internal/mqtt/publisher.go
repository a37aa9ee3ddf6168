// Package mqtt 行程通知旁路通道
//
// 只发布开始/结束通知，不参与行程状态判断；连接断开时发布为空操作。
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/metrics"
)

const (
	DefaultStartTopic = "carshare/inel00/session/start"
	DefaultStopTopic  = "carshare/inel00/session/stop"

	defaultConnectTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second
	disconnectQuiesceMs   = 250
)

// ErrDisabled 未配置 broker
var ErrDisabled = errors.New("mqtt: broker not configured")

// Config MQTT 配置，BrokerURL 为空时禁用
type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	StartTopic     string
	StopTopic      string
	ConnectTimeout time.Duration
}

// SessionEvent 行程通知内容
type SessionEvent struct {
	UserID    string    `json:"userId"`
	CarID     string    `json:"carId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher MQTT 发布端
type Publisher struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	client paho.Client
}

// New 创建发布端，不会立即连接
func New(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StartTopic == "" {
		cfg.StartTopic = DefaultStartTopic
	}
	if cfg.StopTopic == "" {
		cfg.StopTopic = DefaultStopTopic
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("carshare-bff-%d", time.Now().UnixNano())
	}
	return &Publisher{cfg: cfg, logger: logger, metrics: m}
}

// Enabled 是否配置了 broker
func (p *Publisher) Enabled() bool {
	return p != nil && p.cfg.BrokerURL != ""
}

// Connect 连接 broker，断线后由客户端自动重连
func (p *Publisher) Connect(ctx context.Context) error {
	if !p.Enabled() {
		return ErrDisabled
	}

	opts := paho.NewClientOptions().
		AddBroker(p.cfg.BrokerURL).
		SetClientID(p.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(p.cfg.ConnectTimeout).
		SetOnConnectHandler(func(paho.Client) {
			p.logger.Info("MQTT connected", zap.String("broker", p.cfg.BrokerURL))
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logger.Warn("MQTT connection lost", zap.Error(err))
		})
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username).SetPassword(p.cfg.Password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect: %w", ctx.Err())
	case <-time.After(p.cfg.ConnectTimeout):
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect: timeout after %s", p.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	p.mu.Lock()
	p.client = client
	p.mu.Unlock()
	return nil
}

// Disconnect 断开连接
func (p *Publisher) Disconnect() {
	if p == nil {
		return
	}
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client != nil {
		client.Disconnect(disconnectQuiesceMs)
		p.logger.Info("MQTT disconnected")
	}
}

// IsConnected 当前是否在线
func (p *Publisher) IsConnected() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil && p.client.IsConnectionOpen()
}

// PublishSessionStart 发布开始通知
func (p *Publisher) PublishSessionStart(ctx context.Context, ev SessionEvent) error {
	return p.publish(ctx, p.cfg.StartTopic, ev)
}

// PublishSessionStop 发布结束通知
func (p *Publisher) PublishSessionStop(ctx context.Context, ev SessionEvent) error {
	return p.publish(ctx, p.cfg.StopTopic, ev)
}

func (p *Publisher) publish(ctx context.Context, topic string, ev SessionEvent) error {
	if p == nil {
		return nil
	}
	if !p.IsConnected() {
		p.logger.Debug("MQTT offline, notification dropped",
			zap.String("topic", topic),
			zap.String("user_id", ev.UserID))
		p.metrics.IncMQTTPublish(topic, "dropped")
		return nil
	}

	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}

	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()

	token := client.Publish(topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		p.metrics.IncMQTTPublish(topic, "error")
		return fmt.Errorf("mqtt publish %s: %w", topic, ctx.Err())
	case <-time.After(publishTimeout):
		p.metrics.IncMQTTPublish(topic, "error")
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		p.metrics.IncMQTTPublish(topic, "error")
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}

	p.metrics.IncMQTTPublish(topic, "ok")
	p.logger.Debug("MQTT notification published", zap.String("topic", topic), zap.String("user_id", ev.UserID))
	return nil
}

func encodeEvent(ev SessionEvent) ([]byte, error) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode mqtt event: %w", err)
	}
	return data, nil
}
