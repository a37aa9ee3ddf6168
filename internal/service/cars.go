package service

import (
	"context"
	"errors"
	"sync"

	"github.com/langchou/carshare/internal/models"
)

// UserCars 用户管理的车辆和共享给用户的车辆（去重）
// 任一查询失败时返回另一部分结果和错误
func UserCars(ctx context.Context, api CarAPI, userID string) ([]models.Car, error) {
	if userID == "" {
		return []models.Car{}, ErrNotAuthenticated
	}

	var (
		wg                  sync.WaitGroup
		admin, shared       []models.Car
		adminErr, sharedErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		admin, adminErr = api.CarsByAdmin(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		shared, sharedErr = api.CarsByUser(ctx, userID)
	}()
	wg.Wait()

	return MergeCars(admin, shared), errors.Join(adminErr, sharedErr)
}

// MergeCars 合并车辆列表，按 ID 去重，先出现的优先
func MergeCars(lists ...[]models.Car) []models.Car {
	seen := make(map[string]bool)
	merged := make([]models.Car, 0)
	for _, cars := range lists {
		for _, car := range cars {
			if car.ID != "" {
				if seen[car.ID] {
					continue
				}
				seen[car.ID] = true
			}
			merged = append(merged, car)
		}
	}
	return merged
}
