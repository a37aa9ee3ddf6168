package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/langchou/carshare/internal/api/carshare"
	"github.com/langchou/carshare/internal/config"
	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/mqtt"
	"github.com/langchou/carshare/internal/session"
)

var errDown = errors.New("upstream down")

// fakeAPI 上游接口的内存实现
type fakeAPI struct {
	mu sync.Mutex

	sessions    []models.Session
	sessionsErr error
	byUserErr   error
	byCarErr    error
	active      *models.Session
	activeErr   error

	startResult *models.Session
	startErr    error
	startCalls  int
	stopResult  *models.Session
	stopErr     error

	cars      map[string]*models.Car
	carErr    error
	adminCars []models.Car
	userCars  []models.Car
	adminErr  error
	userErr   error

	userCost    *models.StatsData
	userCostErr error

	health    *carshare.HealthData
	healthErr error
}

func (f *fakeAPI) Sessions(ctx context.Context) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionsErr != nil {
		return nil, f.sessionsErr
	}
	return append([]models.Session(nil), f.sessions...), nil
}

func (f *fakeAPI) SessionsByUser(ctx context.Context, userID string) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byUserErr != nil {
		return nil, f.byUserErr
	}
	return session.ForUser(f.sessions, userID), nil
}

func (f *fakeAPI) SessionsByCar(ctx context.Context, carID string) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byCarErr != nil {
		return nil, f.byCarErr
	}
	return session.FindForCar(f.sessions, carID), nil
}

func (f *fakeAPI) ActiveSession(ctx context.Context, userID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	if f.active == nil {
		return nil, nil
	}
	s := *f.active
	return &s, nil
}

func (f *fakeAPI) StartSession(ctx context.Context, userID, carID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.startResult, nil
}

func (f *fakeAPI) StopSession(ctx context.Context) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	return f.stopResult, nil
}

func (f *fakeAPI) CarsByAdmin(ctx context.Context, adminID string) ([]models.Car, error) {
	return f.adminCars, f.adminErr
}

func (f *fakeAPI) CarsByUser(ctx context.Context, userID string) ([]models.Car, error) {
	return f.userCars, f.userErr
}

func (f *fakeAPI) Car(ctx context.Context, carID string) (*models.Car, error) {
	if f.carErr != nil {
		return nil, f.carErr
	}
	car, ok := f.cars[carID]
	if !ok {
		return nil, &carshare.APIError{Status: 404, Message: "Recurso no encontrado."}
	}
	return car, nil
}

func (f *fakeAPI) UserCost(ctx context.Context, userID string) (*models.StatsData, error) {
	return f.userCost, f.userCostErr
}

func (f *fakeAPI) Health(ctx context.Context) (*carshare.HealthData, error) {
	return f.health, f.healthErr
}

func (f *fakeAPI) set(update func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	update(f)
}

// fakeNotifier 记录发布的通知
type fakeNotifier struct {
	mu     sync.Mutex
	starts []mqtt.SessionEvent
	stops  []mqtt.SessionEvent
}

func (n *fakeNotifier) PublishSessionStart(ctx context.Context, ev mqtt.SessionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.starts = append(n.starts, ev)
	return nil
}

func (n *fakeNotifier) PublishSessionStop(ctx context.Context, ev mqtt.SessionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops = append(n.stops, ev)
	return nil
}

func (n *fakeNotifier) IsConnected() bool { return true }

// fakeHub 记录推送
type fakeHub struct {
	mu       sync.Mutex
	messages []string
}

func (h *fakeHub) SendToUser(userID, msgType string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, userID+":"+msgType)
}

func (h *fakeHub) BroadcastMessage(msgType string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, "*:"+msgType)
}

func (h *fakeHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// fakeTrips 内存账本
type fakeTrips struct {
	mu    sync.Mutex
	trips map[string]*models.Trip
}

func newFakeTrips() *fakeTrips {
	return &fakeTrips{trips: make(map[string]*models.Trip)}
}

func (r *fakeTrips) Upsert(ctx context.Context, trip *models.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *trip
	r.trips[trip.SessionID] = &c
	return nil
}

func (r *fakeTrips) get(sessionID string) (*models.Trip, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[sessionID]
	return t, ok
}

func testConfig() *config.Config {
	return &config.Config{
		APITimeout:                time.Second,
		PollIntervalActiveSession: 20 * time.Millisecond,
		PollIntervalHealth:        20 * time.Millisecond,
		PollBackoffFactor:         2,
		PollBackoffMax:            80 * time.Millisecond,
		SessionVerifyDelay:        10 * time.Millisecond,
		SessionVerifyRetry:        20 * time.Millisecond,
	}
}

func ts(s string) models.Timestamp {
	return models.ParseTimestamp(s)
}

var (
	carSuper = &models.Car{ID: "c1", Brand: "Fiat", Model: "Uno", FuelEfficiency: 11.5, FuelType: "Nafta Super"}
	userAna  = &models.User{ID: "u1", Name: "Ana"}
)

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
