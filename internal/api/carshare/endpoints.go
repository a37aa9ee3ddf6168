package carshare

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/langchou/carshare/internal/models"
)

// Login 登录
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	var data any
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, "auth_login", http.MethodPost, "/auth/login", body, &data); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	user := c.normalizer.UserFrom(authUser(data))
	if user == nil || user.ID == "" {
		return nil, fmt.Errorf("login: %w", ErrUnexpectedResponse)
	}
	return user, nil
}

// Register 注册
func (c *Client) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	var data any
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, "auth_register", http.MethodPost, "/auth/register", body, &data); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	user := c.normalizer.UserFrom(authUser(data))
	if user == nil || user.ID == "" {
		return nil, fmt.Errorf("register: %w", ErrUnexpectedResponse)
	}
	if user.Name == "" {
		user.Name = name
	}
	if user.Email == "" {
		user.Email = email
	}
	return user, nil
}

// authUser 认证响应 data 为 {user: {...}}，旧版本直接返回用户对象
func authUser(data any) any {
	if m, ok := data.(map[string]any); ok {
		if u, ok := m["user"]; ok && u != nil {
			return u
		}
	}
	return data
}

// CarsByAdmin 用户作为管理员的车辆
func (c *Client) CarsByAdmin(ctx context.Context, adminID string) ([]models.Car, error) {
	var data []any
	if err := c.do(ctx, "cars_by_admin", http.MethodGet, "/car/admin/"+url.PathEscape(adminID), nil, &data); err != nil {
		return nil, fmt.Errorf("cars by admin: %w", err)
	}
	return c.carsFromWire(data), nil
}

// CarsByUser 共享给用户的车辆
func (c *Client) CarsByUser(ctx context.Context, userID string) ([]models.Car, error) {
	var data []any
	if err := c.do(ctx, "cars_by_user", http.MethodGet, "/car/user/"+url.PathEscape(userID), nil, &data); err != nil {
		return nil, fmt.Errorf("cars by user: %w", err)
	}
	return c.carsFromWire(data), nil
}

// Users 所有用户（用于共享车辆时选择）
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var data []any
	if err := c.do(ctx, "users", http.MethodGet, "/car/users", nil, &data); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return c.usersFromWire(data), nil
}

// CreateCar 创建车辆
func (c *Client) CreateCar(ctx context.Context, req models.CreateCarData) (*models.Car, error) {
	if req.Users == nil {
		req.Users = []string{}
	}
	var data any
	if err := c.do(ctx, "car_create", http.MethodPost, "/car", req, &data); err != nil {
		return nil, fmt.Errorf("create car: %w", err)
	}
	car := c.normalizer.CarFrom(data)
	if car == nil {
		// 后端只返回成功标记时用请求内容构造
		car = &models.Car{
			Brand:          req.Brand,
			Model:          req.Model,
			Year:           req.Year,
			FuelEfficiency: req.FuelEfficiency,
			FuelType:       req.FuelType,
			Admin:          &models.User{ID: req.Admin},
			Users:          []models.User{},
		}
	}
	return car, nil
}

// Car 车辆详情
func (c *Client) Car(ctx context.Context, carID string) (*models.Car, error) {
	var data any
	if err := c.do(ctx, "car_get", http.MethodGet, "/car/"+url.PathEscape(carID), nil, &data); err != nil {
		return nil, fmt.Errorf("get car %s: %w", carID, err)
	}
	car := c.normalizer.CarFrom(data)
	if car == nil {
		return nil, fmt.Errorf("get car %s: %w", carID, ErrUnexpectedResponse)
	}
	return car, nil
}

// RemoveCar 管理员删除车辆
func (c *Client) RemoveCar(ctx context.Context, carID, adminID string) error {
	body := map[string]string{"adminId": adminID}
	if err := c.do(ctx, "car_delete", http.MethodDelete, "/car/"+url.PathEscape(carID)+"/admin", body, nil); err != nil {
		return fmt.Errorf("delete car %s: %w", carID, err)
	}
	return nil
}

// CarCost 车辆费用统计
func (c *Client) CarCost(ctx context.Context, carID string) (*models.StatsData, error) {
	var stats models.StatsData
	body := map[string]string{"car": carID}
	if err := c.do(ctx, "car_cost", http.MethodPost, "/car/cost", body, &stats); err != nil {
		return nil, fmt.Errorf("car cost %s: %w", carID, err)
	}
	return &stats, nil
}

// Sessions 所有行程
func (c *Client) Sessions(ctx context.Context) ([]models.Session, error) {
	var data []map[string]any
	if err := c.do(ctx, "sessions", http.MethodGet, "/user/sessions", nil, &data); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return c.sessionsFromWire(data), nil
}

// SessionsByUser 用户的行程
func (c *Client) SessionsByUser(ctx context.Context, userID string) ([]models.Session, error) {
	var data []map[string]any
	path := "/user/sessions?id=" + url.QueryEscape(userID)
	if err := c.do(ctx, "sessions_by_user", http.MethodGet, path, nil, &data); err != nil {
		return nil, fmt.Errorf("sessions by user: %w", err)
	}
	return c.sessionsFromWire(data), nil
}

// SessionsByCar 车辆的行程
func (c *Client) SessionsByCar(ctx context.Context, carID string) ([]models.Session, error) {
	var data []map[string]any
	if err := c.do(ctx, "sessions_by_car", http.MethodGet, "/user/sessions/car/"+url.PathEscape(carID), nil, &data); err != nil {
		return nil, fmt.Errorf("sessions by car: %w", err)
	}
	return c.sessionsFromWire(data), nil
}

// ActiveSession 用户当前进行中的行程，后端返回 null 时为 nil
func (c *Client) ActiveSession(ctx context.Context, userID string) (*models.Session, error) {
	var data map[string]any
	path := "/user/sessions/active?userId=" + url.QueryEscape(userID)
	if err := c.do(ctx, "session_active", http.MethodGet, path, nil, &data); err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	s := c.sessionFromWire(data)
	return &s, nil
}

// StartSession 开始行程，carID 可为空
func (c *Client) StartSession(ctx context.Context, userID, carID string) (*models.Session, error) {
	body := map[string]string{"userId": userID}
	if carID != "" {
		body["carId"] = carID
	}
	var data map[string]any
	if err := c.do(ctx, "session_start", http.MethodPost, "/user/sessions/start", body, &data); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	s := c.sessionFromWire(data)
	return &s, nil
}

// StopSession 结束当前行程
func (c *Client) StopSession(ctx context.Context) (*models.Session, error) {
	var data map[string]any
	if err := c.do(ctx, "session_stop", http.MethodPost, "/user/sessions/stop", nil, &data); err != nil {
		return nil, fmt.Errorf("stop session: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	s := c.sessionFromWire(data)
	return &s, nil
}

// UserCost 用户费用统计
func (c *Client) UserCost(ctx context.Context, userID string) (*models.StatsData, error) {
	var stats models.StatsData
	body := map[string]string{"user": userID}
	if err := c.do(ctx, "user_cost", http.MethodPost, "/user/cost", body, &stats); err != nil {
		return nil, fmt.Errorf("user cost: %w", err)
	}
	return &stats, nil
}

// HealthData 后端健康检查结果
type HealthData struct {
	MqttConnected bool   `json:"mqttConnected"`
	Timestamp     string `json:"timestamp"`
}

// Health 后端健康检查；结构不符时返回 ErrUnexpectedResponse（此时后端仍视为在线）
func (c *Client) Health(ctx context.Context) (*HealthData, error) {
	var data *HealthData
	if err := c.do(ctx, "health", http.MethodGet, "/health", nil, &data); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("health: %w", ErrUnexpectedResponse)
	}
	return data, nil
}
