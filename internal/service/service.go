// Package service 行程生命周期、轮询与统计
package service

import (
	"context"
	"errors"

	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/mqtt"
	"github.com/langchou/carshare/internal/session"
)

var (
	ErrNotAuthenticated  = errors.New("No hay usuario autenticado")
	ErrStartNotConfirmed = errors.New("El servidor no confirmó el inicio del viaje")
)

// SessionAPI 上游行程接口
type SessionAPI interface {
	session.Source
	StartSession(ctx context.Context, userID, carID string) (*models.Session, error)
	StopSession(ctx context.Context) (*models.Session, error)
}

// CarAPI 上游车辆接口
type CarAPI interface {
	CarsByAdmin(ctx context.Context, adminID string) ([]models.Car, error)
	CarsByUser(ctx context.Context, userID string) ([]models.Car, error)
	Car(ctx context.Context, carID string) (*models.Car, error)
}

// CostAPI 上游费用统计接口
type CostAPI interface {
	UserCost(ctx context.Context, userID string) (*models.StatsData, error)
}

// Notifier 行程旁路通知
type Notifier interface {
	PublishSessionStart(ctx context.Context, ev mqtt.SessionEvent) error
	PublishSessionStop(ctx context.Context, ev mqtt.SessionEvent) error
}

// Broadcaster WebSocket 推送
type Broadcaster interface {
	SendToUser(userID, msgType string, data interface{})
	BroadcastMessage(msgType string, data interface{})
}

// TripRecorder 已结束行程账本
type TripRecorder interface {
	Upsert(ctx context.Context, trip *models.Trip) error
}
