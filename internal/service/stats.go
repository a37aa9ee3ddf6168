package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/balance"
	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/pricing"
	"github.com/langchou/carshare/internal/session"
)

// 余额数据来源
const (
	BalanceSourceUpstream = "upstream"
	BalanceSourceLocal    = "local"
)

// SessionView 带费用的行程
type SessionView struct {
	models.Session
	Active    bool    `json:"active"`
	Cost      float64 `json:"cost"`
	CostLabel string  `json:"cost_label"`
}

// CarStats 车辆统计页数据
type CarStats struct {
	Car                *models.Car      `json:"car,omitempty"`
	Active             *models.Session  `json:"active_session"`
	Sessions           []SessionView    `json:"sessions"`
	Stats              models.StatsData `json:"stats"`
	EfficiencyCategory string           `json:"efficiency_category"` // 车辆详情不可用时按默认油耗
}

// Balance 用户余额
type Balance struct {
	models.StatsData
	Source string `json:"source"`
	Label  string `json:"label"`
}

// StatsService 费用统计
type StatsService struct {
	logger     *zap.Logger
	resolver   *session.Resolver
	aggregator *balance.Aggregator
	cars       CarAPI
	costs      CostAPI
}

// NewStatsService 创建统计服务
func NewStatsService(logger *zap.Logger, resolver *session.Resolver, aggregator *balance.Aggregator, cars CarAPI, costs CostAPI) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if aggregator == nil {
		aggregator = balance.New(nil)
	}
	return &StatsService{
		logger:     logger,
		resolver:   resolver,
		aggregator: aggregator,
		cars:       cars,
		costs:      costs,
	}
}

// Views 按开始时间倒序并计算单次费用
func (s *StatsService) Views(sessions []models.Session) []SessionView {
	sorted := make([]models.Session, len(sessions))
	copy(sorted, sessions)
	session.SortNewestFirst(sorted)

	views := make([]SessionView, 0, len(sorted))
	for i := range sorted {
		cost := s.aggregator.TripCost(&sorted[i])
		views = append(views, SessionView{
			Session:   sorted[i],
			Active:    session.IsActive(&sorted[i]),
			Cost:      cost,
			CostLabel: pricing.FormatCurrency(cost),
		})
	}
	return views
}

// AllSessions 全部行程
func (s *StatsService) AllSessions(ctx context.Context) ([]SessionView, error) {
	sessions, err := s.resolver.All(ctx)
	if err != nil {
		return []SessionView{}, err
	}
	return s.Views(sessions), nil
}

// CarSessions 车辆的行程
func (s *StatsService) CarSessions(ctx context.Context, carID string) ([]SessionView, error) {
	sessions, err := s.resolver.SessionsForCar(ctx, carID)
	if err != nil {
		return []SessionView{}, err
	}
	return s.Views(sessions), nil
}

// CarStats 车辆统计；车辆详情获取失败时用默认油耗计算
func (s *StatsService) CarStats(ctx context.Context, carID string) (*CarStats, error) {
	var (
		wg       sync.WaitGroup
		car      *models.Car
		carErr   error
		sessions []models.Session
		sessErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		car, carErr = s.cars.Car(ctx, carID)
	}()
	go func() {
		defer wg.Done()
		sessions, sessErr = s.resolver.SessionsForCar(ctx, carID)
	}()
	wg.Wait()

	if carErr != nil {
		s.logger.Warn("Car details unavailable, using defaults", zap.String("car_id", carID), zap.Error(carErr))
	}

	out := &CarStats{
		Car:      car,
		Sessions: s.Views(sessions),
		Stats:    s.aggregator.SummarizeForCar(sessions, car),
		Active:   session.FindActive(sessions),
	}
	efficiency := pricing.DefaultFuelEfficiency
	if car != nil && car.FuelEfficiency > 0 {
		efficiency = car.FuelEfficiency
	}
	out.EfficiencyCategory = pricing.EfficiencyCategory(efficiency)
	return out, errors.Join(sessErr, carErr)
}

// Balance 用户余额：优先上游统计，失败时按用户行程本地汇总
func (s *StatsService) Balance(ctx context.Context, userID string) (*Balance, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	stats, err := s.costs.UserCost(ctx, userID)
	if err == nil && stats != nil {
		return newBalance(*stats, BalanceSourceUpstream), nil
	}

	s.logger.Warn("User cost query failed, aggregating locally", zap.String("user_id", userID), zap.Error(err))

	sessions, serr := s.resolver.SessionsForUser(ctx, userID)
	if serr != nil {
		return newBalance(models.StatsData{}, BalanceSourceLocal), fmt.Errorf("balance: %w", errors.Join(err, serr))
	}
	return newBalance(s.aggregator.Summarize(sessions), BalanceSourceLocal), nil
}

func newBalance(stats models.StatsData, source string) *Balance {
	return &Balance{
		StatsData: stats,
		Source:    source,
		Label:     pricing.FormatCurrency(stats.TotalCost),
	}
}
