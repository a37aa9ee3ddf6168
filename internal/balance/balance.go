// Package balance 行程费用汇总
package balance

import (
	"math"

	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/pricing"
)

// Aggregator 费用汇总器
// 进行中的行程按当前已行驶距离计入
type Aggregator struct {
	calc *pricing.Calculator
}

// New 创建汇总器，calc 为 nil 时使用参考价格
func New(calc *pricing.Calculator) *Aggregator {
	if calc == nil {
		calc = pricing.Default()
	}
	return &Aggregator{calc: calc}
}

// Calculator 使用的价格计算器
func (a *Aggregator) Calculator() *pricing.Calculator {
	return a.calc
}

// TripCost 单次行程费用，车辆缺失时使用默认油耗和燃油类型
func (a *Aggregator) TripCost(s *models.Session) float64 {
	return a.tripCost(s, nil)
}

// TotalCost 行程费用合计，非有限值不计入
func (a *Aggregator) TotalCost(sessions []models.Session) float64 {
	var total float64
	for i := range sessions {
		total += finite(a.TripCost(&sessions[i]))
	}
	return total
}

// TotalDistance 行程距离合计
func (a *Aggregator) TotalDistance(sessions []models.Session) float64 {
	var total float64
	for i := range sessions {
		total += finite(sessions[i].Distance)
	}
	return total
}

// Summarize 汇总费用、距离和油量
func (a *Aggregator) Summarize(sessions []models.Session) models.StatsData {
	return a.summarize(sessions, nil)
}

// SummarizeForCar 汇总单车统计
// 行程缺少车辆信息时使用 car 的油耗和燃油类型
func (a *Aggregator) SummarizeForCar(sessions []models.Session, car *models.Car) models.StatsData {
	return a.summarize(sessions, car)
}

func (a *Aggregator) summarize(sessions []models.Session, fallback *models.Car) models.StatsData {
	var stats models.StatsData
	for i := range sessions {
		s := &sessions[i]
		car := carFor(s, fallback)
		stats.TotalCost += finite(a.tripCost(s, fallback))
		stats.TotalDistance += finite(s.Distance)
		stats.FuelConsumption += finite(a.calc.FuelConsumption(s.Distance, efficiencyOf(car)))
	}
	return stats
}

func (a *Aggregator) tripCost(s *models.Session, fallback *models.Car) float64 {
	car := carFor(s, fallback)
	if car == nil {
		return a.calc.Cost(s.Distance, 0, "")
	}
	return a.calc.Cost(s.Distance, car.FuelEfficiency, car.FuelType)
}

func carFor(s *models.Session, fallback *models.Car) *models.Car {
	if s.Car != nil && (s.Car.FuelEfficiency > 0 || s.Car.FuelType != "") {
		return s.Car
	}
	if fallback != nil {
		return fallback
	}
	return s.Car
}

func efficiencyOf(car *models.Car) float64 {
	if car == nil {
		return 0
	}
	return car.FuelEfficiency
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

var defaultAggregator = New(nil)

// TotalCost 使用参考价格汇总费用
func TotalCost(sessions []models.Session) float64 {
	return defaultAggregator.TotalCost(sessions)
}

// TotalDistance 汇总距离
func TotalDistance(sessions []models.Session) float64 {
	return defaultAggregator.TotalDistance(sessions)
}
