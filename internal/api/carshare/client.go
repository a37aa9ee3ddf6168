// Package carshare 车辆共享后端 API 客户端
package carshare

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/metrics"
	"github.com/langchou/carshare/internal/normalize"
)

const breakerName = "carshare-api"

// BreakerSettings 熔断器配置
type BreakerSettings struct {
	MaxRequests  uint32        // 半开状态允许的并发请求数
	Interval     time.Duration // 闭合状态计数清零周期
	Timeout      time.Duration // 打开后进入半开的等待时间
	MinRequests  uint32        // 触发判断的最少请求数
	FailureRatio float64       // 失败率阈值
}

// DefaultBreakerSettings 默认熔断配置
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// Client 车辆共享 API 客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
	metrics    *metrics.Metrics
	normalizer *normalize.Normalizer
	breaker    *gobreaker.CircuitBreaker[any]
}

// Option 客户端选项
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *metrics.Metrics
	breaker    BreakerSettings
}

// WithHTTPClient 使用自定义 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithTimeout 设置请求超时
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// WithBreaker 设置熔断配置
func WithBreaker(s BreakerSettings) Option {
	return func(o *clientOptions) { o.breaker = s }
}

// NewClient 创建客户端
func NewClient(baseURL string, opts ...Option) *Client {
	o := clientOptions{
		timeout: 10 * time.Second,
		logger:  zap.NewNop(),
		breaker: DefaultBreakerSettings(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}

	c := &Client{
		httpClient: o.httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     o.logger,
		metrics:    o.metrics,
		normalizer: normalize.New(o.logger),
	}
	c.breaker = newBreaker(o.breaker, o.logger, o.metrics)
	return c
}

func newBreaker(s BreakerSettings, logger *zap.Logger, m *metrics.Metrics) *gobreaker.CircuitBreaker[any] {
	m.SetBreakerState(breakerName, 0)

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		// 4xx 与业务拒绝说明上游是健康的
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.ClientError()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			m.SetBreakerState(name, breakerStateValue(to))
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerState 熔断器当前状态
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// envelope 后端统一响应结构
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// do 执行请求并解包 {success, data}，out 为 nil 时丢弃 data
func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) error {
	start := time.Now()

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, body, out)
	})

	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	case errors.Is(err, ErrNetwork):
		outcome = "network_error"
	default:
		outcome = "error"
	}
	c.metrics.ObserveUpstream(endpoint, outcome, time.Since(start))

	if err != nil {
		c.logger.Debug("Upstream request failed",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := StatusMessage(resp.StatusCode)
		if decodeErr == nil {
			if env.Message != "" {
				msg = env.Message
			} else if env.Error != "" {
				msg = env.Error
			}
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedResponse, decodeErr)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		if msg == "" {
			msg = msgBackendRejected
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %w", ErrUnexpectedResponse, err)
	}
	return nil
}
