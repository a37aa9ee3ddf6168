package validation

import (
	"strings"

	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/pricing"
)

// LoginRequest 登录表单
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=4"`
}

// Normalize 去除空白并转小写邮箱
func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// RegisterRequest 注册表单
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=4,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=4,max=50"`
}

// Normalize 去除空白并转小写邮箱
func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// CarRequest 创建车辆表单
type CarRequest struct {
	Model          string   `json:"model" validate:"required,max=50"`
	Brand          string   `json:"brand" validate:"required,max=30"`
	Year           int      `json:"year" validate:"gte=1900,maxyear"`
	FuelEfficiency float64  `json:"fuelEfficiency" validate:"gte=1,lte=50"`
	FuelType       string   `json:"fuelType" validate:"required,fueltype"`
	Users          []string `json:"users" validate:"dive,required"`
}

// Normalize 去除空白并补全默认油耗、燃油类型
func (r *CarRequest) Normalize() {
	r.Model = strings.TrimSpace(r.Model)
	r.Brand = strings.TrimSpace(r.Brand)
	if r.FuelEfficiency == 0 {
		r.FuelEfficiency = pricing.DefaultFuelEfficiency
	}
	if strings.TrimSpace(r.FuelType) == "" {
		r.FuelType = pricing.DefaultFuelType
	}
	if r.Users == nil {
		r.Users = []string{}
	}
}

// ToCreateCar 转换为后端请求，adminID 为当前用户
// 管理员本人不出现在共享用户中
func (r *CarRequest) ToCreateCar(adminID string) models.CreateCarData {
	users := make([]string, 0, len(r.Users))
	seen := make(map[string]bool, len(r.Users))
	for _, u := range r.Users {
		if u == adminID || seen[u] {
			continue
		}
		seen[u] = true
		users = append(users, u)
	}
	return models.CreateCarData{
		Brand:          r.Brand,
		Model:          r.Model,
		Year:           r.Year,
		FuelEfficiency: r.FuelEfficiency,
		FuelType:       r.FuelType,
		Users:          users,
		Admin:          adminID,
	}
}

// StartSessionRequest 开始行程请求，car_id 可选
type StartSessionRequest struct {
	CarID string `json:"car_id"`
}
