// Package pricing 燃油费用计算
package pricing

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// 燃油类型
const (
	FuelNaftaSuper   = "Nafta Super"
	FuelNaftaPremium = "Nafta Premium"
	FuelDiesel       = "Diesel"
)

// 默认值
const (
	DefaultFuelEfficiency = 11.5 // km/l
	DefaultFuelType       = FuelNaftaSuper
	DefaultPricePerLiter  = 1200.0 // ARS，未知燃油类型使用
)

// FuelTypes 支持的燃油类型
var FuelTypes = []string{FuelNaftaSuper, FuelNaftaPremium, FuelDiesel}

// PriceTable 燃油类型 -> 每升价格 (ARS)
type PriceTable map[string]float64

// DefaultPrices 参考价格
func DefaultPrices() PriceTable {
	return PriceTable{
		FuelNaftaSuper:   1200,
		FuelNaftaPremium: 1400,
		FuelDiesel:       1250,
	}
}

// LoadPriceTable 从 YAML 文件加载价格，文件中的值覆盖默认价格
//
//	prices:
//	  Nafta Super: 1300
//	  Diesel: 1280
func LoadPriceTable(path string) (PriceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price file: %w", err)
	}

	var file struct {
		Prices map[string]float64 `yaml:"prices"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse price file: %w", err)
	}

	table := DefaultPrices()
	for fuel, price := range file.Prices {
		if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			return nil, fmt.Errorf("invalid price %v for %q", price, fuel)
		}
		table[fuel] = price
	}
	return table, nil
}

// Calculator 费用计算器
type Calculator struct {
	prices PriceTable
}

// NewCalculator 创建计算器，prices 为 nil 时使用默认价格
func NewCalculator(prices PriceTable) *Calculator {
	if prices == nil {
		prices = DefaultPrices()
	}
	return &Calculator{prices: prices}
}

var defaultCalculator = NewCalculator(nil)

// Default 使用参考价格的计算器
func Default() *Calculator {
	return defaultCalculator
}

// Prices 返回价格表副本
func (c *Calculator) Prices() PriceTable {
	out := make(PriceTable, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
}

// PricePerLiter 燃油单价，空类型按默认类型，未知类型按默认单价
func (c *Calculator) PricePerLiter(fuelType string) float64 {
	if fuelType == "" {
		fuelType = DefaultFuelType
	}
	if price, ok := c.prices[fuelType]; ok {
		return price
	}
	return DefaultPricePerLiter
}

// Cost 计算行程费用 (distance / efficiency) * price
// efficiency 未设置（<=0 或 NaN）时使用默认油耗，结果不做取整
func (c *Calculator) Cost(distance, efficiency float64, fuelType string) float64 {
	return distance / effectiveEfficiency(efficiency) * c.PricePerLiter(fuelType)
}

// FuelConsumption 油耗（升）
func (c *Calculator) FuelConsumption(distance, efficiency float64) float64 {
	return distance / effectiveEfficiency(efficiency)
}

// Cost 使用参考价格计算费用
func Cost(distance, efficiency float64, fuelType string) float64 {
	return defaultCalculator.Cost(distance, efficiency, fuelType)
}

// FuelConsumption 使用默认油耗计算油量
func FuelConsumption(distance, efficiency float64) float64 {
	return defaultCalculator.FuelConsumption(distance, efficiency)
}

func effectiveEfficiency(efficiency float64) float64 {
	if efficiency <= 0 || math.IsNaN(efficiency) {
		return DefaultFuelEfficiency
	}
	return efficiency
}

// IsValidFuelType 是否为支持的燃油类型
func IsValidFuelType(fuelType string) bool {
	for _, f := range FuelTypes {
		if f == fuelType {
			return true
		}
	}
	return false
}
