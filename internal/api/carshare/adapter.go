package carshare

import (
	"strconv"
	"strings"
	"time"

	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/normalize"
)

// 后端两种命名约定下的时间字段
var (
	startKeys = []string{"start_time", "startTime"}
	endKeys   = []string{"end_time", "endTime"}
)

// sessionFromWire 把后端行程映射为内部统一结构，所有命名差异只在这里处理
func (c *Client) sessionFromWire(raw map[string]any) models.Session {
	s := models.Session{
		ID:       normalize.IDOf(raw),
		Distance: floatValue(raw["distance"]),
		Start:    timestampFrom(firstPresent(raw, startKeys)),
		End:      timestampFrom(firstPresent(raw, endKeys)),
	}

	if active, ok := raw["isActive"].(bool); ok {
		s.IsActive = &active
	}

	if u, ok := raw["user"]; ok && u != nil {
		s.User = c.normalizer.UserFrom(u)
		if s.User == nil {
			s.UserRaw = rawString(u)
			c.metrics.IncNormalizeFailure()
		}
	}

	if car, ok := raw["car"]; ok && car != nil {
		s.Car = c.normalizer.CarFrom(car)
		if s.Car == nil {
			s.CarRaw = rawString(car)
			c.metrics.IncNormalizeFailure()
		}
	}

	return s
}

func (c *Client) sessionsFromWire(raw []map[string]any) []models.Session {
	sessions := make([]models.Session, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		sessions = append(sessions, c.sessionFromWire(r))
	}
	return sessions
}

func (c *Client) carsFromWire(raw []any) []models.Car {
	cars := make([]models.Car, 0, len(raw))
	for _, r := range raw {
		if car := c.normalizer.CarFrom(r); car != nil {
			cars = append(cars, *car)
		} else {
			c.metrics.IncNormalizeFailure()
		}
	}
	return cars
}

func (c *Client) usersFromWire(raw []any) []models.User {
	users := make([]models.User, 0, len(raw))
	for _, r := range raw {
		if u := c.normalizer.UserFrom(r); u != nil {
			users = append(users, *u)
		}
	}
	return users
}

// firstPresent 返回第一个非空字段值
func firstPresent(raw map[string]any, keys []string) any {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

// timestampFrom 支持 ISO 字符串、毫秒时间戳和 {$date: ...}
func timestampFrom(v any) models.Timestamp {
	switch t := v.(type) {
	case string:
		return models.ParseTimestamp(strings.TrimSpace(t))
	case float64:
		return models.NewTimestamp(time.UnixMilli(int64(t)).UTC())
	case map[string]any:
		return timestampFrom(t["$date"])
	}
	return models.Timestamp{}
}

func floatValue(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func rawString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
