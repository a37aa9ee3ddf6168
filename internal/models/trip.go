package models

import "time"

// Trip 已结束行程的费用记录（本地账本）
type Trip struct {
	ID             int64     `json:"id" db:"id"`
	SessionID      string    `json:"session_id" db:"session_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	UserName       string    `json:"user_name" db:"user_name"`
	CarID          *string   `json:"car_id,omitempty" db:"car_id"`
	DistanceKm     float64   `json:"distance_km" db:"distance_km"`
	FuelEfficiency float64   `json:"fuel_efficiency" db:"fuel_efficiency"`
	FuelType       string    `json:"fuel_type" db:"fuel_type"`
	PricePerLiter  float64   `json:"price_per_liter" db:"price_per_liter"`
	Cost           float64   `json:"cost" db:"cost"`
	StartTime      time.Time `json:"start_time" db:"start_time"`
	EndTime        time.Time `json:"end_time" db:"end_time"`
	RecordedAt     time.Time `json:"recorded_at" db:"recorded_at"`
}
