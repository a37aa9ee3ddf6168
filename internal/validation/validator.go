// Package validation 表单校验（登录、注册、创建车辆）
//
// 使用 go-playground/validator 单例，错误信息为西班牙语，
// 与前端表单的提示保持一致。校验失败时不应向后端发送请求。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/langchou/carshare/internal/pricing"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Message
}

// Errors 一次校验的所有字段错误
type Errors struct {
	fields []FieldError
}

// Fields 返回字段错误列表
func (e *Errors) Fields() []FieldError {
	return e.fields
}

// ByField 字段名 -> 第一条错误信息
func (e *Errors) ByField() map[string]string {
	out := make(map[string]string, len(e.fields))
	for _, f := range e.fields {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Message
		}
	}
	return out
}

func (e *Errors) Error() string {
	if len(e.fields) == 0 {
		return "Los datos enviados no son válidos."
	}
	msgs := make([]string, len(e.fields))
	for i, f := range e.fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Get 返回单例 validator
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()

		// 错误中使用 JSON 字段名
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("fueltype", func(fl validator.FieldLevel) bool {
			return pricing.IsValidFuelType(fl.Field().String())
		})
		_ = validate.RegisterValidation("maxyear", func(fl validator.FieldLevel) bool {
			return fl.Field().Int() <= int64(time.Now().Year()+1)
		})
	})
	return validate
}

// Struct 校验结构体，通过时返回 nil，失败时返回 *Errors
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	out := &Errors{fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.fields = append(out.fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

// 字段.标签 -> 提示信息
var messages = map[string]string{
	"email.required":    "El email es requerido",
	"email.email":       "El formato del email no es válido",
	"password.required": "La contraseña es requerida",
	"password.min":      "La contraseña debe tener al menos 4 caracteres",
	"password.max":      "La contraseña no puede tener más de 50 caracteres",
	"name.required":     "El nombre es requerido",
	"name.min":          "El nombre debe tener al menos 4 caracteres",
	"name.max":          "El nombre no puede tener más de 50 caracteres",

	"model.required":     "El modelo es requerido",
	"model.max":          "El modelo no puede tener más de 50 caracteres",
	"brand.required":     "La marca es requerida",
	"brand.max":          "La marca no puede tener más de 30 caracteres",
	"year.gte":           "El año debe ser mayor a 1900",
	"year.maxyear":       "El año no puede ser mayor al año actual",
	"fuelEfficiency.gte": "La eficiencia de combustible debe ser mayor a 1 km/l",
	"fuelEfficiency.lte": "La eficiencia de combustible no puede ser mayor a 50 km/l",
	"fuelType.required":  "El tipo de combustible es obligatorio",
	"fuelType.fueltype":  "Tipo de combustible inválido",
}

func message(fe validator.FieldError) string {
	if strings.HasPrefix(fe.Field(), "users[") {
		return "Usuario inválido"
	}
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("El campo %s no es válido", fe.Field())
}
