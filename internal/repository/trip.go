package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/carshare/internal/models"
)

// ErrTripNotFound 行程未记录
var ErrTripNotFound = errors.New("trip not found")

// TripRepository 已结束行程账本
type TripRepository struct {
	db *DB
}

// NewTripRepository 创建账本仓库
func NewTripRepository(db *DB) *TripRepository {
	return &TripRepository{db: db}
}

const tripColumns = `id, session_id, user_id, user_name, car_id, distance_km, fuel_efficiency, fuel_type,
	price_per_liter, cost, start_time, end_time, recorded_at`

// Upsert 按 session_id 写入，同一行程重复结束时覆盖
func (r *TripRepository) Upsert(ctx context.Context, trip *models.Trip) error {
	query := `
		INSERT INTO trips (session_id, user_id, user_name, car_id, distance_km, fuel_efficiency, fuel_type,
			price_per_liter, cost, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id) DO UPDATE SET
			user_name = EXCLUDED.user_name,
			car_id = EXCLUDED.car_id,
			distance_km = EXCLUDED.distance_km,
			fuel_efficiency = EXCLUDED.fuel_efficiency,
			fuel_type = EXCLUDED.fuel_type,
			price_per_liter = EXCLUDED.price_per_liter,
			cost = EXCLUDED.cost,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			recorded_at = NOW()
		RETURNING id, recorded_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		trip.SessionID,
		trip.UserID,
		trip.UserName,
		trip.CarID,
		trip.DistanceKm,
		trip.FuelEfficiency,
		trip.FuelType,
		trip.PricePerLiter,
		trip.Cost,
		trip.StartTime,
		trip.EndTime,
	).Scan(&trip.ID, &trip.RecordedAt)

	if err != nil {
		return fmt.Errorf("upsert trip: %w", err)
	}
	return nil
}

// GetBySessionID 按行程 ID 获取
func (r *TripRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE session_id = $1`
	trip := &models.Trip{}
	err := r.db.Pool.QueryRow(ctx, query, sessionID).Scan(
		&trip.ID,
		&trip.SessionID,
		&trip.UserID,
		&trip.UserName,
		&trip.CarID,
		&trip.DistanceKm,
		&trip.FuelEfficiency,
		&trip.FuelType,
		&trip.PricePerLiter,
		&trip.Cost,
		&trip.StartTime,
		&trip.EndTime,
		&trip.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trip by session id: %w", err)
	}
	return trip, nil
}

// ListByUser 用户的行程记录，按开始时间倒序
func (r *TripRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE user_id = $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip := &models.Trip{}
		err := rows.Scan(
			&trip.ID,
			&trip.SessionID,
			&trip.UserID,
			&trip.UserName,
			&trip.CarID,
			&trip.DistanceKm,
			&trip.FuelEfficiency,
			&trip.FuelType,
			&trip.PricePerLiter,
			&trip.Cost,
			&trip.StartTime,
			&trip.EndTime,
			&trip.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trips: %w", err)
	}
	return trips, nil
}

// CountByUser 用户行程记录数
func (r *TripRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM trips WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count trips: %w", err)
	}
	return count, nil
}

// StatsByUser 用户账本汇总
func (r *TripRepository) StatsByUser(ctx context.Context, userID string) (*models.StatsData, error) {
	query := `
		SELECT
			COALESCE(SUM(cost), 0),
			COALESCE(SUM(distance_km), 0),
			COALESCE(SUM(distance_km / NULLIF(fuel_efficiency, 0)), 0)
		FROM trips WHERE user_id = $1
	`
	stats := &models.StatsData{}
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&stats.TotalCost,
		&stats.TotalDistance,
		&stats.FuelConsumption,
	)
	if err != nil {
		return nil, fmt.Errorf("trip stats: %w", err)
	}
	return stats, nil
}
