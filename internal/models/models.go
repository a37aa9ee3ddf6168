package models

import (
	"encoding/json"
	"time"
)

// User 用户信息（由认证后端维护，创建后不可变）
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Car 车辆信息
type Car struct {
	ID             string  `json:"id"`
	Brand          string  `json:"brand"`
	Model          string  `json:"model"`
	Year           int     `json:"year"`
	FuelEfficiency float64 `json:"fuelEfficiency"` // km/l
	FuelType       string  `json:"fuelType"`
	Admin          *User   `json:"admin,omitempty"`
	Users          []User  `json:"users"`
}

// HasUser 判断用户是否为车辆管理员或共享用户
func (c *Car) HasUser(userID string) bool {
	if c.Admin != nil && c.Admin.ID == userID {
		return true
	}
	for _, u := range c.Users {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// CreateCarData 创建车辆请求
type CreateCarData struct {
	Brand          string   `json:"brand"`
	Model          string   `json:"model"`
	Year           int      `json:"year"`
	FuelEfficiency float64  `json:"fuelEfficiency"`
	FuelType       string   `json:"fuelType"`
	Users          []string `json:"users"`
	Admin          string   `json:"admin"`
}

// Timestamp 后端返回的时间字段
// Raw 为空表示字段不存在；Valid 为 false 表示存在但无法解析
type Timestamp struct {
	Raw   string
	Time  time.Time
	Valid bool
}

// NewTimestamp 从时间构造
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Raw: t.UTC().Format(time.RFC3339Nano), Time: t, Valid: true}
}

// ParseTimestamp 解析时间字符串，失败时保留原始值
func ParseTimestamp(raw string) Timestamp {
	if raw == "" {
		return Timestamp{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Timestamp{Raw: raw, Time: t, Valid: true}
		}
	}
	return Timestamp{Raw: raw}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Present 字段是否存在
func (t Timestamp) Present() bool {
	return t.Raw != ""
}

// SortKey 排序用时间，无法解析的时间视为最早
func (t Timestamp) SortKey() time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

// MarshalJSON 不存在时输出 null
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Present() {
		return []byte("null"), nil
	}
	if t.Valid {
		return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
	}
	return json.Marshal(t.Raw)
}

// UnmarshalJSON 实现 json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = ParseTimestamp(raw)
	return nil
}

// Session 行程（一次用车记录），内部统一结构
type Session struct {
	ID       string    `json:"id"`
	User     *User     `json:"user,omitempty"`
	UserRaw  string    `json:"user_raw,omitempty"` // 无法修复的原始 user 字段
	Car      *Car      `json:"car,omitempty"`      // 旧记录可能没有车辆
	CarRaw   string    `json:"car_raw,omitempty"`  // 无法修复的原始 car 字段
	Distance float64   `json:"distance"`           // km
	Start    Timestamp `json:"start_time"`
	End      Timestamp `json:"end_time"`
	IsActive *bool     `json:"isActive,omitempty"` // 后端显式给出的活跃标记
}

// UserID 行程所属用户 ID
func (s *Session) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// CarID 行程关联车辆 ID
func (s *Session) CarID() string {
	if s.Car == nil {
		return ""
	}
	return s.Car.ID
}

// StatsData 费用统计
type StatsData struct {
	TotalCost       float64 `json:"totalCost"`
	TotalDistance   float64 `json:"totalDistance"`
	FuelConsumption float64 `json:"fuelConsumption"` // 升
}

// HealthStatus 后端与消息代理健康状态
type HealthStatus struct {
	BackendConnected bool       `json:"backend_connected"`
	MqttConnected    bool       `json:"mqtt_connected"`     // 后端上报的 MQTT 状态
	NotifierOnline   bool       `json:"notifier_connected"` // 本服务的 MQTT 连接
	Error            string     `json:"error,omitempty"`
	LastCheck        *time.Time `json:"last_check,omitempty"`
}
