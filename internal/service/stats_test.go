package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/langchou/carshare/internal/balance"
	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/pricing"
	"github.com/langchou/carshare/internal/session"
)

func statsFixture(api *fakeAPI) *StatsService {
	resolver := session.NewResolver(api, nil, nil, nil)
	return NewStatsService(nil, resolver, balance.New(nil), api, api)
}

func tripSessions() []models.Session {
	return []models.Session{
		{ID: "a", User: userAna, Car: carSuper, Distance: 11.5, Start: ts("2024-01-01T08:00:00Z"), End: ts("2024-01-01T09:00:00Z")},
		{ID: "b", User: userAna, Car: carSuper, Distance: 23, Start: ts("2024-01-02T08:00:00Z"), End: ts("2024-01-02T09:00:00Z")},
		{ID: "c", User: &models.User{ID: "u2"}, Distance: 7, Start: ts("2024-01-03T08:00:00Z")},
	}
}

func TestViewsSortedWithCost(t *testing.T) {
	svc := statsFixture(&fakeAPI{})
	views := svc.Views(tripSessions())

	if len(views) != 3 || views[0].ID != "c" || views[2].ID != "a" {
		t.Fatalf("order = %v %v %v", views[0].ID, views[1].ID, views[2].ID)
	}
	if !views[0].Active || views[1].Active {
		t.Errorf("active flags = %v %v", views[0].Active, views[1].Active)
	}
	if math.Abs(views[1].Cost-2400) > 1e-9 || views[1].CostLabel != "$ 2400.00 ARS" {
		t.Errorf("view b = %v %q", views[1].Cost, views[1].CostLabel)
	}
}

func TestBalanceUpstream(t *testing.T) {
	api := &fakeAPI{userCost: &models.StatsData{TotalCost: 999, TotalDistance: 10}}
	b, err := statsFixture(api).Balance(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Source != BalanceSourceUpstream || b.TotalCost != 999 || b.Label != "$ 999.00 ARS" {
		t.Errorf("balance = %+v", b)
	}
}

func TestBalanceFallsBackToLocal(t *testing.T) {
	api := &fakeAPI{userCostErr: errDown, sessions: tripSessions()}
	b, err := statsFixture(api).Balance(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Source != BalanceSourceLocal {
		t.Errorf("source = %q", b.Source)
	}
	if math.Abs(b.TotalCost-3600) > 1e-9 || math.Abs(b.TotalDistance-34.5) > 1e-9 {
		t.Errorf("balance = %+v", b)
	}

	api.sessionsErr = errDown
	api.byUserErr = errDown
	b, err = statsFixture(api).Balance(context.Background(), "u1")
	if err == nil || b.TotalCost != 0 {
		t.Errorf("balance with everything down = %+v, %v", b, err)
	}
}

func TestBalanceRequiresUser(t *testing.T) {
	if _, err := statsFixture(&fakeAPI{}).Balance(context.Background(), ""); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("err = %v", err)
	}
}

func TestCarStats(t *testing.T) {
	diesel := &models.Car{ID: "c9", FuelEfficiency: 12.5, FuelType: "Diesel"}
	api := &fakeAPI{
		cars: map[string]*models.Car{"c9": diesel},
		sessions: []models.Session{
			// 行程中的车辆只有 ID
			{ID: "x", User: userAna, Car: &models.Car{ID: "c9"}, Distance: 25, Start: ts("2024-01-01T08:00:00Z"), End: ts("2024-01-01T09:00:00Z")},
			{ID: "y", User: userAna, Car: &models.Car{ID: "c9"}, Distance: 5, Start: ts("2024-01-02T08:00:00Z")},
			{ID: "z", User: userAna, Car: carSuper, Distance: 100, Start: ts("2024-01-02T08:00:00Z")},
		},
	}

	stats, err := statsFixture(api).CarStats(context.Background(), "c9")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.Sessions) != 2 || stats.Active == nil || stats.Active.ID != "y" {
		t.Fatalf("stats = %+v", stats)
	}
	// (25 + 5) / 12.5 * 1250
	if math.Abs(stats.Stats.TotalCost-3000) > 1e-9 {
		t.Errorf("total cost = %v", stats.Stats.TotalCost)
	}
	if stats.EfficiencyCategory != pricing.CategoryNormal {
		t.Errorf("category = %q", stats.EfficiencyCategory)
	}

	// 车辆详情不可用时仍返回行程
	stats, err = statsFixture(api).CarStats(context.Background(), "missing")
	if err == nil || stats == nil || stats.Car != nil {
		t.Errorf("missing car = %+v, %v", stats, err)
	}
	if stats != nil && stats.EfficiencyCategory != pricing.EfficiencyCategory(pricing.DefaultFuelEfficiency) {
		t.Errorf("default category = %q", stats.EfficiencyCategory)
	}
}

func TestUserCars(t *testing.T) {
	api := &fakeAPI{
		adminCars: []models.Car{{ID: "c1", Model: "Uno"}, {ID: "c2"}},
		userCars:  []models.Car{{ID: "c2"}, {ID: "c3"}},
	}
	cars, err := UserCars(context.Background(), api, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cars) != 3 || cars[0].ID != "c1" || cars[2].ID != "c3" {
		t.Errorf("cars = %+v", cars)
	}

	api.userErr = errDown
	cars, err = UserCars(context.Background(), api, "u1")
	if !errors.Is(err, errDown) || len(cars) != 2 {
		t.Errorf("partial cars = %+v, %v", cars, err)
	}
}

func TestMergeCarsKeepsFirst(t *testing.T) {
	merged := MergeCars(
		[]models.Car{{ID: "c1", Model: "admin copy"}},
		[]models.Car{{ID: "c1", Model: "shared copy"}, {Model: "no id"}},
	)
	if len(merged) != 2 || merged[0].Model != "admin copy" {
		t.Errorf("merged = %+v", merged)
	}
	if MergeCars() == nil {
		t.Error("empty merge should be an empty slice")
	}
}
