package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/metrics"
	"github.com/langchou/carshare/internal/models"
)

// Source 行程数据来源（上游 API）
type Source interface {
	Sessions(ctx context.Context) ([]models.Session, error)
	SessionsByUser(ctx context.Context, userID string) ([]models.Session, error)
	SessionsByCar(ctx context.Context, carID string) ([]models.Session, error)
	ActiveSession(ctx context.Context, userID string) (*models.Session, error)
}

// Cache 全量行程缓存，仅用于降级路径
type Cache interface {
	Get(ctx context.Context) ([]models.Session, error)
	Set(ctx context.Context, sessions []models.Session) error
	Invalidate(ctx context.Context) error
}

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("session cache miss")

// Resolver 带降级的行程查询
// 专用查询失败时拉取全量行程并在本地筛选，降级成功时不返回错误
type Resolver struct {
	source  Source
	cache   Cache
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewResolver 创建 Resolver，cache 可为 nil
func NewResolver(source Source, cache Cache, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source:  source,
		cache:   cache,
		logger:  logger,
		metrics: m,
	}
}

// All 全量行程
func (r *Resolver) All(ctx context.Context) ([]models.Session, error) {
	sessions, err := r.source.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	r.store(ctx, sessions)
	return sessions, nil
}

// SessionsForCar 车辆的所有行程
func (r *Resolver) SessionsForCar(ctx context.Context, carID string) ([]models.Session, error) {
	sessions, err := r.source.SessionsByCar(ctx, carID)
	if err == nil {
		return sessions, nil
	}

	r.logger.Warn("Car sessions query failed, falling back to full collection",
		zap.String("car_id", carID),
		zap.Error(err))

	all, ferr := r.fallbackCollection(ctx, "by_car")
	if ferr != nil {
		return nil, fmt.Errorf("sessions for car %s: %w", carID, errors.Join(err, ferr))
	}
	return FindForCar(all, carID), nil
}

// ActiveForCar 车辆当前进行中的行程
func (r *Resolver) ActiveForCar(ctx context.Context, carID string) (*models.Session, error) {
	sessions, err := r.SessionsForCar(ctx, carID)
	if err != nil {
		return nil, err
	}
	// 专用查询返回的行程可能缺少车辆字段，结果已按车辆过滤
	return FindActive(sessions), nil
}

// SessionsForUser 用户的所有行程
func (r *Resolver) SessionsForUser(ctx context.Context, userID string) ([]models.Session, error) {
	sessions, err := r.source.SessionsByUser(ctx, userID)
	if err == nil {
		return sessions, nil
	}

	r.logger.Warn("User sessions query failed, falling back to full collection",
		zap.String("user_id", userID),
		zap.Error(err))

	all, ferr := r.fallbackCollection(ctx, "by_user")
	if ferr != nil {
		return nil, fmt.Errorf("sessions for user %s: %w", userID, errors.Join(err, ferr))
	}
	return ForUser(all, userID), nil
}

// ActiveForUser 用户当前进行中的行程，没有则返回 nil
func (r *Resolver) ActiveForUser(ctx context.Context, userID string) (*models.Session, error) {
	active, err := r.source.ActiveSession(ctx, userID)
	if err == nil {
		if active != nil && IsActive(active) {
			return active, nil
		}
		return nil, nil
	}

	r.logger.Warn("Active session query failed, falling back to full collection",
		zap.String("user_id", userID),
		zap.Error(err))

	all, ferr := r.fallbackCollection(ctx, "active_by_user")
	if ferr != nil {
		return nil, fmt.Errorf("active session for user %s: %w", userID, errors.Join(err, ferr))
	}
	return FindActiveForUser(all, userID), nil
}

// Invalidate 清除缓存（开始/结束行程后调用）
func (r *Resolver) Invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx); err != nil {
		r.logger.Warn("Failed to invalidate session cache", zap.Error(err))
	}
}

// fallbackCollection 先查缓存，未命中时拉取全量行程
func (r *Resolver) fallbackCollection(ctx context.Context, query string) ([]models.Session, error) {
	if r.cache != nil {
		sessions, err := r.cache.Get(ctx)
		switch {
		case err == nil:
			r.metrics.IncCache("hit")
			r.metrics.IncFallback(query, "cache")
			return sessions, nil
		case errors.Is(err, ErrCacheMiss):
			r.metrics.IncCache("miss")
		default:
			r.metrics.IncCache("error")
			r.logger.Warn("Session cache unavailable", zap.Error(err))
		}
	}

	sessions, err := r.source.Sessions(ctx)
	if err != nil {
		r.metrics.IncFallback(query, "failure")
		return nil, err
	}
	r.metrics.IncFallback(query, "success")
	r.store(ctx, sessions)
	return sessions, nil
}

func (r *Resolver) store(ctx context.Context, sessions []models.Session) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, sessions); err != nil {
		r.logger.Warn("Failed to cache sessions", zap.Error(err))
	}
}
