// Package session 活跃行程判定与筛选
package session

import (
	"sort"

	"github.com/langchou/carshare/internal/models"
)

// IsActive 判断行程是否进行中
// 显式 isActive 优先；否则有开始时间且没有结束时间即为进行中
func IsActive(s *models.Session) bool {
	if s == nil {
		return false
	}
	if s.IsActive != nil {
		return *s.IsActive
	}
	return s.Start.Present() && !s.End.Present()
}

// FindActive 返回最近开始的进行中行程，没有则返回 nil
func FindActive(sessions []models.Session) *models.Session {
	return latestStarted(sessions, func(s *models.Session) bool {
		return IsActive(s)
	})
}

// FindActiveForUser 返回用户最近开始的进行中行程
func FindActiveForUser(sessions []models.Session, userID string) *models.Session {
	if userID == "" {
		return nil
	}
	return latestStarted(sessions, func(s *models.Session) bool {
		return s.UserID() == userID && IsActive(s)
	})
}

// FindForCar 返回车辆的所有行程（不限状态），没有车辆信息的行程不匹配
func FindForCar(sessions []models.Session, carID string) []models.Session {
	return filter(sessions, func(s *models.Session) bool {
		return carID != "" && s.CarID() == carID
	})
}

// ForUser 返回用户的所有行程
func ForUser(sessions []models.Session, userID string) []models.Session {
	return filter(sessions, func(s *models.Session) bool {
		return userID != "" && s.UserID() == userID
	})
}

// SortNewestFirst 按开始时间倒序排列（原地、稳定），无法解析的时间排在最后
func SortNewestFirst(sessions []models.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Start.SortKey().After(sessions[j].Start.SortKey())
	})
}

// latestStarted 在满足条件的行程中选开始时间最晚的一个
// 开始时间相同时保留先出现的
func latestStarted(sessions []models.Session, match func(*models.Session) bool) *models.Session {
	var best *models.Session
	for i := range sessions {
		s := &sessions[i]
		if !match(s) {
			continue
		}
		if best == nil || s.Start.SortKey().After(best.Start.SortKey()) {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	found := *best
	return &found
}

func filter(sessions []models.Session, match func(*models.Session) bool) []models.Session {
	out := make([]models.Session, 0, len(sessions))
	for i := range sessions {
		if match(&sessions[i]) {
			out = append(out, sessions[i])
		}
	}
	return out
}
