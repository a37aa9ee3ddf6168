package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/carshare/internal/balance"
	"github.com/langchou/carshare/internal/config"
	"github.com/langchou/carshare/internal/metrics"
	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/mqtt"
	"github.com/langchou/carshare/internal/pricing"
	"github.com/langchou/carshare/internal/session"
	"github.com/langchou/carshare/internal/state"
	"github.com/langchou/carshare/pkg/ws"
)

// SessionService 行程服务
//
// 负责开始/结束行程、轮询登录用户的进行中行程并同步状态机，
// 行程结束后把费用写入账本。
type SessionService struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	api        SessionAPI
	resolver   *session.Resolver
	aggregator *balance.Aggregator
	states     *state.Manager
	notifier   Notifier
	hub        Broadcaster
	trips      TripRecorder
	poller     *Poller

	mu      sync.RWMutex
	watched map[string]bool // 需要轮询的用户

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionService 创建行程服务，notifier、hub、trips 可为 nil
func NewSessionService(
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
	api SessionAPI,
	resolver *session.Resolver,
	aggregator *balance.Aggregator,
	notifier Notifier,
	hub Broadcaster,
	trips TripRecorder,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if aggregator == nil {
		aggregator = balance.New(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())

	svc := &SessionService{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		api:        api,
		resolver:   resolver,
		aggregator: aggregator,
		notifier:   notifier,
		hub:        hub,
		trips:      trips,
		watched:    make(map[string]bool),
		ctx:        ctx,
		cancel:     cancel,
	}

	// 创建状态管理器
	svc.states = state.NewManager(svc.onStateChange)

	svc.poller = NewPoller(PollerConfig{
		Name:          "active_session",
		Interval:      cfg.PollIntervalActiveSession,
		BackoffFactor: cfg.PollBackoffFactor,
		BackoffMax:    cfg.PollBackoffMax,
	}, svc.pollActive, logger, m)

	return svc
}

// Start 启动进行中行程轮询
func (s *SessionService) Start(ctx context.Context) {
	s.logger.Info("Starting session service",
		zap.Duration("interval", s.cfg.PollIntervalActiveSession))
	s.poller.Start(ctx)
}

// Stop 停止轮询并等待后台任务结束
func (s *SessionService) Stop() {
	s.poller.Stop()
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Session service stopped")
}

// Watch 开始轮询用户的进行中行程
func (s *SessionService) Watch(userID string) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	added := !s.watched[userID]
	s.watched[userID] = true
	s.mu.Unlock()

	if added {
		s.logger.Debug("Watching user sessions", zap.String("user_id", userID))
	}
}

// Unwatch 停止轮询（登出）
func (s *SessionService) Unwatch(userID string) {
	s.mu.Lock()
	delete(s.watched, userID)
	s.mu.Unlock()
}

// Watched 正在轮询的用户
func (s *SessionService) Watched() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.watched))
	for userID := range s.watched {
		users = append(users, userID)
	}
	return users
}

// State 用户的行程状态，没有时返回 nil
func (s *SessionService) State(userID string) *state.SessionState {
	machine, ok := s.states.Get(userID)
	if !ok {
		return nil
	}
	return machine.GetState()
}

// ActiveSession 查询用户进行中的行程并同步状态机
func (s *SessionService) ActiveSession(ctx context.Context, userID string) (*models.Session, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	s.Watch(userID)

	active, err := s.resolver.ActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.reconcile(ctx, userID, active)
	return active, nil
}

// StartSession 开始行程，carID 可为空
func (s *SessionService) StartSession(ctx context.Context, userID, carID string) (*models.Session, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if _, err := s.states.Begin(userID, carID); err != nil {
		return nil, err
	}
	s.Watch(userID)
	s.broadcastState(userID)

	started, err := s.api.StartSession(ctx, userID, carID)
	if err != nil {
		if ferr := s.states.Fail(userID, err); ferr != nil {
			s.logger.Error("Failed to mark start as failed", zap.String("user_id", userID), zap.Error(ferr))
		}
		s.broadcastState(userID)
		s.logger.Warn("Start session rejected", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.resolver.Invalidate(ctx)
	if started != nil {
		if err := s.states.Confirm(userID, started); err != nil {
			s.logger.Error("Failed to confirm session", zap.String("user_id", userID), zap.Error(err))
		}
	}
	s.broadcastState(userID)

	ev := mqtt.SessionEvent{UserID: userID, CarID: carID, Timestamp: time.Now().UTC()}
	if started != nil {
		ev.SessionID = started.ID
	}
	s.notify(ctx, ev, true)

	s.logger.Info("Session started", zap.String("user_id", userID), zap.String("car_id", carID))
	s.scheduleVerification(userID)
	return started, nil
}

// StopSession 结束当前行程
func (s *SessionService) StopSession(ctx context.Context, userID string) (*models.Session, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	prev := s.State(userID)

	ended, err := s.api.StopSession(ctx)
	if err != nil {
		s.logger.Warn("Stop session rejected", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.resolver.Invalidate(ctx)
	if err := s.states.Stop(userID); err != nil {
		s.logger.Error("Failed to stop session state", zap.String("user_id", userID), zap.Error(err))
	}
	s.broadcastState(userID)

	ev := mqtt.SessionEvent{UserID: userID, Timestamp: time.Now().UTC()}
	if prev != nil {
		ev.CarID = prev.CarID
		ev.SessionID = prev.SessionID
	}
	if ended != nil && ended.ID != "" {
		ev.SessionID = ended.ID
	}
	s.notify(ctx, ev, false)

	switch {
	case ended != nil && ended.End.Present():
		s.recordAsync(userID, "", ended)
	case ev.SessionID != "":
		s.recordAsync(userID, ev.SessionID, nil)
	}

	s.logger.Info("Session stopped", zap.String("user_id", userID), zap.String("session_id", ev.SessionID))
	return ended, nil
}

// pollActive 轮询所有关注用户的进行中行程
func (s *SessionService) pollActive(ctx context.Context) error {
	var errs []error
	for _, userID := range s.Watched() {
		active, err := s.resolver.ActiveForUser(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		s.reconcile(ctx, userID, active)
	}
	return errors.Join(errs...)
}

// reconcile 同步状态机；之前进行中的行程结束时记录费用
func (s *SessionService) reconcile(ctx context.Context, userID string, active *models.Session) {
	prev := s.State(userID)

	changed, err := s.states.Reconcile(userID, active)
	if err != nil {
		s.logger.Error("Failed to reconcile session state", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if !changed {
		return
	}

	if prev != nil && prev.CurrentState == state.StateActive && prev.SessionID != "" &&
		(active == nil || active.ID != prev.SessionID) {
		s.recordAsync(userID, prev.SessionID, nil)
	}
	s.broadcastState(userID)
}

// scheduleVerification 开始后按延迟重新查询，确认后端已创建行程
func (s *SessionService) scheduleVerification(userID string) {
	delays := []time.Duration{s.cfg.SessionVerifyDelay, s.cfg.SessionVerifyRetry}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for _, d := range delays {
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(d):
			}
			if s.verify(userID) {
				return
			}
		}

		// 重试后仍未确认
		if st := s.State(userID); st != nil && st.CurrentState == state.StatePendingStart {
			if err := s.states.Fail(userID, ErrStartNotConfirmed); err != nil {
				s.logger.Error("Failed to mark start as failed", zap.String("user_id", userID), zap.Error(err))
			}
			s.broadcastState(userID)
			s.logger.Warn("Session start not confirmed by backend", zap.String("user_id", userID))
		}
	}()
}

// verify 查询一次，已确认（或已不在待确认状态）时返回 true
func (s *SessionService) verify(userID string) bool {
	if st := s.State(userID); st == nil || st.CurrentState != state.StatePendingStart {
		return true
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.requestTimeout())
	defer cancel()

	active, err := s.resolver.ActiveForUser(ctx, userID)
	if err != nil {
		s.logger.Debug("Session verification failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	s.reconcile(ctx, userID, active)

	st := s.State(userID)
	return st == nil || st.CurrentState != state.StatePendingStart
}

// recordAsync 后台记录已结束行程；ended 为空时按 sessionID 查询
func (s *SessionService) recordAsync(userID, sessionID string, ended *models.Session) {
	if s.trips == nil {
		return
	}
	var endedCopy *models.Session
	if ended != nil {
		c := *ended
		endedCopy = &c
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.requestTimeout())
		defer cancel()

		if err := s.recordEnded(ctx, userID, sessionID, endedCopy); err != nil {
			s.logger.Warn("Failed to record trip", zap.String("user_id", userID), zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

func (s *SessionService) recordEnded(ctx context.Context, userID, sessionID string, ended *models.Session) error {
	if ended == nil {
		sessions, err := s.resolver.SessionsForUser(ctx, userID)
		if err != nil {
			return err
		}
		for i := range sessions {
			if sessions[i].ID == sessionID {
				ended = &sessions[i]
				break
			}
		}
		if ended == nil {
			return fmt.Errorf("session %s not found", sessionID)
		}
	}

	trip, ok := BuildTrip(ended, s.aggregator)
	if !ok {
		s.logger.Debug("Session not finished yet, trip not recorded", zap.String("session_id", ended.ID))
		return nil
	}
	if trip.UserID == "" {
		trip.UserID = userID
	}
	if err := s.trips.Upsert(ctx, trip); err != nil {
		return err
	}
	s.logger.Info("Trip recorded",
		zap.String("session_id", trip.SessionID),
		zap.Float64("distance_km", trip.DistanceKm),
		zap.String("cost", pricing.FormatCurrency(trip.Cost)))
	return nil
}

// BuildTrip 把已结束行程转为账本记录，未结束或时间无法解析时返回 false
func BuildTrip(s *models.Session, agg *balance.Aggregator) (*models.Trip, bool) {
	if s == nil || s.ID == "" || !s.Start.Valid || !s.End.Valid {
		return nil, false
	}
	if agg == nil {
		agg = balance.New(nil)
	}

	efficiency := pricing.DefaultFuelEfficiency
	fuelType := pricing.DefaultFuelType
	if s.Car != nil {
		if s.Car.FuelEfficiency > 0 {
			efficiency = s.Car.FuelEfficiency
		}
		if s.Car.FuelType != "" {
			fuelType = s.Car.FuelType
		}
	}

	trip := &models.Trip{
		SessionID:      s.ID,
		UserID:         s.UserID(),
		DistanceKm:     s.Distance,
		FuelEfficiency: efficiency,
		FuelType:       fuelType,
		PricePerLiter:  agg.Calculator().PricePerLiter(fuelType),
		Cost:           agg.TripCost(s),
		StartTime:      s.Start.Time,
		EndTime:        s.End.Time,
	}
	if s.User != nil {
		trip.UserName = s.User.Name
	}
	if carID := s.CarID(); carID != "" {
		trip.CarID = &carID
	}
	return trip, true
}

func (s *SessionService) notify(ctx context.Context, ev mqtt.SessionEvent, start bool) {
	if s.notifier == nil {
		return
	}
	var err error
	if start {
		err = s.notifier.PublishSessionStart(ctx, ev)
	} else {
		err = s.notifier.PublishSessionStop(ctx, ev)
	}
	if err != nil {
		s.logger.Warn("Failed to publish session notification", zap.Bool("start", start), zap.Error(err))
	}
}

// onStateChange 状态变化回调（在状态机锁内调用，不能再访问状态机）
func (s *SessionService) onStateChange(userID, from, to string) {
	if from == "" {
		from = "none"
	}
	s.metrics.IncTransition(from, to)
	s.logger.Info("Session state changed", zap.String("user_id", userID), zap.String("from", from), zap.String("to", to))
}

// broadcastState 推送用户行程状态
func (s *SessionService) broadcastState(userID string) {
	if s.hub == nil {
		return
	}
	s.hub.SendToUser(userID, ws.MsgTypeSessionUpdate, s.State(userID))
}

func (s *SessionService) requestTimeout() time.Duration {
	if s.cfg.APITimeout > 0 {
		return s.cfg.APITimeout
	}
	return 10 * time.Second
}
