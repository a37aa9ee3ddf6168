package balance

import (
	"math"
	"testing"

	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/pricing"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestEmpty(t *testing.T) {
	if got := TotalCost(nil); got != 0 {
		t.Errorf("TotalCost(nil) = %v", got)
	}
	if got := TotalDistance([]models.Session{}); got != 0 {
		t.Errorf("TotalDistance(empty) = %v", got)
	}
	stats := New(nil).Summarize(nil)
	if stats != (models.StatsData{}) {
		t.Errorf("Summarize(nil) = %+v", stats)
	}
}

func TestCarScenario(t *testing.T) {
	car := &models.Car{ID: "c1", FuelEfficiency: 11.5, FuelType: pricing.FuelNaftaSuper}
	sessions := []models.Session{
		{ID: "1", Car: car, Distance: 23, Start: models.ParseTimestamp("2024-01-01T10:00:00Z")},
		{ID: "2", Car: car, Distance: 11.5, Start: models.ParseTimestamp("2024-01-02T10:00:00Z"), End: models.ParseTimestamp("2024-01-02T11:00:00Z")},
	}

	agg := New(nil)
	if got := agg.TripCost(&sessions[0]); !near(got, 2400) {
		t.Errorf("trip 1 = %v, want 2400", got)
	}
	if got := agg.TripCost(&sessions[1]); !near(got, 1200) {
		t.Errorf("trip 2 = %v, want 1200", got)
	}
	if got := TotalCost(sessions); !near(got, 3600) {
		t.Errorf("TotalCost = %v, want 3600", got)
	}
	if got := TotalDistance(sessions); !near(got, 34.5) {
		t.Errorf("TotalDistance = %v, want 34.5", got)
	}

	stats := agg.Summarize(sessions)
	if !near(stats.FuelConsumption, 3) {
		t.Errorf("FuelConsumption = %v, want 3", stats.FuelConsumption)
	}
}

func TestAdditivity(t *testing.T) {
	sessions := []models.Session{
		{Distance: 10, Car: &models.Car{FuelEfficiency: 10, FuelType: pricing.FuelDiesel}},
		{Distance: 42.7, Car: &models.Car{FuelEfficiency: 17.2, FuelType: pricing.FuelNaftaPremium}},
		{Distance: 5},
		{Distance: 0, Car: &models.Car{FuelEfficiency: 8}},
	}

	var want float64
	for _, s := range sessions {
		var eff float64
		var fuel string
		if s.Car != nil {
			eff, fuel = s.Car.FuelEfficiency, s.Car.FuelType
		}
		want += pricing.Cost(s.Distance, eff, fuel)
	}
	if got := TotalCost(sessions); !near(got, want) {
		t.Errorf("TotalCost = %v, want sum of parts %v", got, want)
	}
}

func TestNonFiniteSkipped(t *testing.T) {
	sessions := []models.Session{
		{Distance: math.Inf(1)},
		{Distance: 11.5},
	}
	if got := TotalCost(sessions); !near(got, 1200) {
		t.Errorf("TotalCost = %v, want 1200", got)
	}
	if got := TotalDistance(sessions); !near(got, 11.5) {
		t.Errorf("TotalDistance = %v, want 11.5", got)
	}
}

func TestSummarizeForCarUsesCarWhenSessionHasNone(t *testing.T) {
	car := &models.Car{ID: "c1", FuelEfficiency: 10, FuelType: pricing.FuelNaftaPremium}
	sessions := []models.Session{
		{Distance: 10},
		{Distance: 10, Car: &models.Car{ID: "c1"}},
	}

	stats := New(nil).SummarizeForCar(sessions, car)
	if !near(stats.TotalCost, 2800) {
		t.Errorf("TotalCost = %v, want 2800", stats.TotalCost)
	}
	if !near(stats.FuelConsumption, 2) {
		t.Errorf("FuelConsumption = %v, want 2", stats.FuelConsumption)
	}
}

func TestCustomPrices(t *testing.T) {
	agg := New(pricing.NewCalculator(pricing.PriceTable{pricing.FuelDiesel: 2000}))
	sessions := []models.Session{{Distance: 10, Car: &models.Car{FuelEfficiency: 10, FuelType: pricing.FuelDiesel}}}
	if got := agg.TotalCost(sessions); !near(got, 2000) {
		t.Errorf("TotalCost = %v, want 2000", got)
	}
}
