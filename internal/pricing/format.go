package pricing

import (
	"fmt"
	"math"
)

// 油耗等级
const (
	CategoryVeryEfficient = "Muy Eficiente"
	CategoryEfficient     = "Eficiente"
	CategoryNormal        = "Normal"
	CategoryInefficient   = "Poco Eficiente"
)

// Unavailable 非有限数值的显示文本
const Unavailable = "—"

// FormatCurrency 格式化金额，例如 "$ 1200.00 ARS"
func FormatCurrency(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Unavailable
	}
	return fmt.Sprintf("$ %.2f ARS", amount)
}

// FormatEfficiency 格式化油耗，例如 "11.5 km/l"
func FormatEfficiency(efficiency float64) string {
	if math.IsNaN(efficiency) || math.IsInf(efficiency, 0) {
		return Unavailable
	}
	return fmt.Sprintf("%.1f km/l", efficiency)
}

// FormatPricePerLiter 格式化单价，例如 "$1200 ARS/L"
func FormatPricePerLiter(price float64) string {
	return fmt.Sprintf("$%.0f ARS/L", price)
}

// EfficiencyCategory 油耗等级
func EfficiencyCategory(efficiency float64) string {
	switch {
	case efficiency >= 20:
		return CategoryVeryEfficient
	case efficiency >= 15:
		return CategoryEfficient
	case efficiency >= 10:
		return CategoryNormal
	default:
		return CategoryInefficient
	}
}
