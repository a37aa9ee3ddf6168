package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/metrics"
)

// PollFunc 一次轮询
type PollFunc func(ctx context.Context) error

// PollerConfig 轮询配置
type PollerConfig struct {
	Name          string
	Interval      time.Duration
	BackoffFactor float64
	BackoffMax    time.Duration
}

// Poller 定时轮询
//
// - 上一次轮询未结束时跳过本次（包括 Trigger 触发的）
// - 失败时间隔乘以 BackoffFactor，直到 BackoffMax；成功后恢复为 Interval
type Poller struct {
	cfg     PollerConfig
	poll    PollFunc
	logger  *zap.Logger
	metrics *metrics.Metrics

	inFlight atomic.Bool
	trigger  chan struct{}

	mu       sync.Mutex
	interval time.Duration
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewPoller 创建轮询器
func NewPoller(cfg PollerConfig, poll PollFunc, logger *zap.Logger, m *metrics.Metrics) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	if cfg.BackoffMax < cfg.Interval {
		cfg.BackoffMax = cfg.Interval
	}
	return &Poller{
		cfg:      cfg,
		poll:     poll,
		logger:   logger.With(zap.String("poller", cfg.Name)),
		metrics:  m,
		trigger:  make(chan struct{}, 1),
		interval: cfg.Interval,
	}
}

// Start 启动轮询，立即执行第一次
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	p.metrics.SetPollInterval(p.cfg.Name, p.Interval())

	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop 停止轮询并等待进行中的轮询结束
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// Trigger 请求尽快轮询一次，已有待处理请求时合并
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Interval 当前轮询间隔（含退避）
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// PollOnce 执行一次轮询；上一次仍在进行时跳过并返回 false
func (p *Poller) PollOnce(ctx context.Context) (bool, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.metrics.IncPollSkipped(p.cfg.Name)
		p.logger.Debug("Previous poll still in flight, skipping")
		return false, nil
	}
	defer p.inFlight.Store(false)

	err := p.poll(ctx)
	if err != nil {
		p.metrics.IncPoll(p.cfg.Name, "error")
		p.applyBackoff(err)
		return true, err
	}

	p.metrics.IncPoll(p.cfg.Name, "ok")
	p.resetBackoff()
	return true, nil
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-p.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		_, _ = p.PollOnce(ctx)
		timer.Reset(p.Interval())
	}
}

// applyBackoff 应用指数退避策略
func (p *Poller) applyBackoff(err error) {
	p.mu.Lock()
	next := time.Duration(float64(p.interval) * p.cfg.BackoffFactor)
	if next > p.cfg.BackoffMax {
		next = p.cfg.BackoffMax
	}
	p.interval = next
	p.mu.Unlock()

	p.metrics.SetPollInterval(p.cfg.Name, next)
	p.logger.Warn("Poll failed, applied backoff",
		zap.Error(err),
		zap.Duration("next_interval", next),
		zap.Duration("max_interval", p.cfg.BackoffMax))
}

// resetBackoff 轮询成功后恢复正常间隔
func (p *Poller) resetBackoff() {
	p.mu.Lock()
	changed := p.interval != p.cfg.Interval
	p.interval = p.cfg.Interval
	p.mu.Unlock()

	if changed {
		p.metrics.SetPollInterval(p.cfg.Name, p.cfg.Interval)
		p.logger.Info("Poll recovered, reset backoff interval", zap.Duration("interval", p.cfg.Interval))
	}
}
