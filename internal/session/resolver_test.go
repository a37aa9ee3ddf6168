package session

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/langchou/carshare/internal/metrics"
	"github.com/langchou/carshare/internal/models"
)

var errUpstream = errors.New("upstream down")

type fakeSource struct {
	all       []models.Session
	allErr    error
	byCarErr  error
	byUserErr error
	activeErr error
	active    *models.Session
	allCalls  int
}

func (f *fakeSource) Sessions(ctx context.Context) ([]models.Session, error) {
	f.allCalls++
	return f.all, f.allErr
}

func (f *fakeSource) SessionsByUser(ctx context.Context, userID string) ([]models.Session, error) {
	if f.byUserErr != nil {
		return nil, f.byUserErr
	}
	return ForUser(f.all, userID), nil
}

func (f *fakeSource) SessionsByCar(ctx context.Context, carID string) ([]models.Session, error) {
	if f.byCarErr != nil {
		return nil, f.byCarErr
	}
	return FindForCar(f.all, carID), nil
}

func (f *fakeSource) ActiveSession(ctx context.Context, userID string) (*models.Session, error) {
	return f.active, f.activeErr
}

type memCache struct {
	sessions []models.Session
	ok       bool
}

func (c *memCache) Get(ctx context.Context) ([]models.Session, error) {
	if !c.ok {
		return nil, ErrCacheMiss
	}
	return c.sessions, nil
}

func (c *memCache) Set(ctx context.Context, sessions []models.Session) error {
	c.sessions, c.ok = sessions, true
	return nil
}

func (c *memCache) Invalidate(ctx context.Context) error {
	c.sessions, c.ok = nil, false
	return nil
}

func fixture() []models.Session {
	return []models.Session{
		mk("1", "ana", "car1", "2024-01-01T10:00:00Z", "2024-01-01T11:00:00Z"),
		mk("2", "ana", "car1", "2024-01-02T10:00:00Z", ""),
		mk("3", "bo", "car2", "2024-01-03T10:00:00Z", ""),
	}
}

func TestResolverFallbackByCar(t *testing.T) {
	src := &fakeSource{all: fixture(), byCarErr: errUpstream}
	m := metrics.New()
	r := NewResolver(src, nil, nil, m)

	got, err := r.SessionsForCar(context.Background(), "car1")
	if err != nil {
		t.Fatalf("fallback should hide the error, got %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d sessions, want 2", len(got))
	}
	if v := testutil.ToFloat64(m.ResolverFallbacksTotal.WithLabelValues("by_car", "success")); v != 1 {
		t.Errorf("fallback metric = %v, want 1", v)
	}

	active, err := r.ActiveForCar(context.Background(), "car1")
	if err != nil || active == nil || active.ID != "2" {
		t.Errorf("ActiveForCar = %+v, %v", active, err)
	}
}

func TestResolverFallbackFailureSurfacesError(t *testing.T) {
	src := &fakeSource{byCarErr: errUpstream, allErr: errors.New("also down")}
	r := NewResolver(src, nil, nil, nil)

	if _, err := r.SessionsForCar(context.Background(), "car1"); !errors.Is(err, errUpstream) {
		t.Errorf("expected wrapped upstream error, got %v", err)
	}
}

func TestResolverActiveForUser(t *testing.T) {
	ctx := context.Background()

	dedicated := mk("x", "ana", "", "2024-05-01T10:00:00Z", "")
	r := NewResolver(&fakeSource{active: &dedicated}, nil, nil, nil)
	if got, err := r.ActiveForUser(ctx, "ana"); err != nil || got == nil || got.ID != "x" {
		t.Errorf("dedicated: %+v, %v", got, err)
	}

	endedResp := mk("y", "ana", "", "2024-05-01T10:00:00Z", "2024-05-01T12:00:00Z")
	r = NewResolver(&fakeSource{active: &endedResp}, nil, nil, nil)
	if got, err := r.ActiveForUser(ctx, "ana"); err != nil || got != nil {
		t.Errorf("ended response should resolve to nil, got %+v, %v", got, err)
	}

	r = NewResolver(&fakeSource{}, nil, nil, nil)
	if got, err := r.ActiveForUser(ctx, "ana"); err != nil || got != nil {
		t.Errorf("null response: %+v, %v", got, err)
	}

	r = NewResolver(&fakeSource{all: fixture(), activeErr: errUpstream}, nil, nil, nil)
	if got, err := r.ActiveForUser(ctx, "ana"); err != nil || got == nil || got.ID != "2" {
		t.Errorf("fallback: %+v, %v", got, err)
	}
}

func TestResolverFallbackByUser(t *testing.T) {
	r := NewResolver(&fakeSource{all: fixture(), byUserErr: errUpstream}, nil, nil, nil)

	got, err := r.SessionsForUser(context.Background(), "bo")
	if err != nil || len(got) != 1 || got[0].ID != "3" {
		t.Errorf("SessionsForUser = %+v, %v", got, err)
	}
}

func TestResolverUsesCacheOnFallback(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{all: fixture(), byCarErr: errUpstream}
	cache := &memCache{}
	r := NewResolver(src, cache, nil, nil)

	if _, err := r.SessionsForCar(ctx, "car1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.SessionsForCar(ctx, "car2"); err != nil {
		t.Fatal(err)
	}
	if src.allCalls != 1 {
		t.Errorf("full collection fetched %d times, want 1", src.allCalls)
	}

	r.Invalidate(ctx)
	if _, err := r.SessionsForCar(ctx, "car1"); err != nil {
		t.Fatal(err)
	}
	if src.allCalls != 2 {
		t.Errorf("after invalidate fetched %d times, want 2", src.allCalls)
	}
}
