package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/langchou/carshare/internal/models"
)

// 未展开的引用 ID，例如 "64f1a2..."
var idRefRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// IDOf 从修复后的对象中取 ID，依次尝试 _id 和 id
func IDOf(v any) string {
	switch t := v.(type) {
	case map[string]any:
		for _, key := range []string{"_id", "id"} {
			if id := stringField(t, key); id != "" {
				return id
			}
		}
		// {_id: {$oid: "..."}}
		if oid, ok := t["_id"].(map[string]any); ok {
			return stringField(oid, "$oid")
		}
	case string:
		if idRefRe.MatchString(t) {
			return t
		}
	}
	return ""
}

// UserFrom 把修复后的值转换为用户，无法识别时返回 nil
// 裸 ID 字符串视为未展开的用户引用
func (n *Normalizer) UserFrom(raw any) *models.User {
	v := n.Normalize(raw)
	switch t := v.(type) {
	case map[string]any:
		return &models.User{
			ID:    IDOf(t),
			Name:  stringField(t, "name"),
			Email: stringField(t, "email"),
		}
	case string:
		if id := IDOf(t); id != "" {
			return &models.User{ID: id}
		}
	}
	return nil
}

// CarFrom 把修复后的值转换为车辆，无法识别时返回 nil
func (n *Normalizer) CarFrom(raw any) *models.Car {
	v := n.Normalize(raw)
	switch t := v.(type) {
	case map[string]any:
		car := &models.Car{
			ID:             IDOf(t),
			Brand:          stringField(t, "brand"),
			Model:          stringField(t, "model"),
			Year:           int(numberField(t, "year")),
			FuelEfficiency: numberField(t, "fuelEfficiency"),
			FuelType:       stringField(t, "fuelType"),
			Users:          []models.User{},
		}
		if admin, ok := t["admin"]; ok && admin != nil {
			car.Admin = n.UserFrom(admin)
		}
		switch users := n.Normalize(t["users"]).(type) {
		case []any:
			for _, u := range users {
				if user := n.UserFrom(u); user != nil {
					car.Users = append(car.Users, *user)
				}
			}
		}
		return car
	case string:
		if id := IDOf(t); id != "" {
			return &models.Car{ID: id, Users: []models.User{}}
		}
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// numberField 读取数值字段，兼容数字字符串
func numberField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil && !math.IsNaN(f) {
			return f
		}
	}
	return 0
}
