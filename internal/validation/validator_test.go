package validation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs *Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected *Errors, got %v", err)
	}
	return verrs.ByField()
}

func TestLoginRequest(t *testing.T) {
	req := LoginRequest{}
	got := fieldsOf(t, Struct(&req))
	if got["email"] != "El email es requerido" || got["password"] != "La contraseña es requerida" {
		t.Errorf("empty login = %v", got)
	}

	req = LoginRequest{Email: "no-es-email", Password: "abc"}
	got = fieldsOf(t, Struct(&req))
	if got["email"] != "El formato del email no es válido" {
		t.Errorf("email = %q", got["email"])
	}
	if got["password"] != "La contraseña debe tener al menos 4 caracteres" {
		t.Errorf("password = %q", got["password"])
	}

	req = LoginRequest{Email: "  Ana@Example.COM ", Password: "1234"}
	req.Normalize()
	if req.Email != "ana@example.com" {
		t.Errorf("normalized email = %q", req.Email)
	}
	if err := Struct(&req); err != nil {
		t.Errorf("valid login rejected: %v", err)
	}
}

func TestRegisterRequest(t *testing.T) {
	req := RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: strings.Repeat("x", 51)}
	got := fieldsOf(t, Struct(&req))
	if got["name"] != "El nombre debe tener al menos 4 caracteres" {
		t.Errorf("name = %q", got["name"])
	}
	if got["password"] != "La contraseña no puede tener más de 50 caracteres" {
		t.Errorf("password = %q", got["password"])
	}

	req = RegisterRequest{Name: "  Ana Paula ", Email: "ana@example.com", Password: "secreta"}
	req.Normalize()
	if err := Struct(&req); err != nil || req.Name != "Ana Paula" {
		t.Errorf("valid register = %q, %v", req.Name, err)
	}
}

func TestCarRequestDefaults(t *testing.T) {
	req := CarRequest{Model: " Uno ", Brand: "Fiat", Year: 2010}
	req.Normalize()

	if req.FuelEfficiency != 11.5 || req.FuelType != "Nafta Super" {
		t.Errorf("defaults = %v %q", req.FuelEfficiency, req.FuelType)
	}
	if req.Model != "Uno" || req.Users == nil {
		t.Errorf("normalized = %+v", req)
	}
	if err := Struct(&req); err != nil {
		t.Errorf("valid car rejected: %v", err)
	}
}

func TestCarRequestErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   CarRequest
		field string
		want  string
	}{
		{"model missing", CarRequest{Brand: "Fiat", Year: 2010, FuelEfficiency: 10, FuelType: "Diesel"}, "model", "El modelo es requerido"},
		{"brand too long", CarRequest{Model: "Uno", Brand: strings.Repeat("b", 31), Year: 2010, FuelEfficiency: 10, FuelType: "Diesel"}, "brand", "La marca no puede tener más de 30 caracteres"},
		{"year too old", CarRequest{Model: "Uno", Brand: "Fiat", Year: 1800, FuelEfficiency: 10, FuelType: "Diesel"}, "year", "El año debe ser mayor a 1900"},
		{"year in future", CarRequest{Model: "Uno", Brand: "Fiat", Year: time.Now().Year() + 5, FuelEfficiency: 10, FuelType: "Diesel"}, "year", "El año no puede ser mayor al año actual"},
		{"efficiency low", CarRequest{Model: "Uno", Brand: "Fiat", Year: 2010, FuelEfficiency: 0.5, FuelType: "Diesel"}, "fuelEfficiency", "La eficiencia de combustible debe ser mayor a 1 km/l"},
		{"efficiency high", CarRequest{Model: "Uno", Brand: "Fiat", Year: 2010, FuelEfficiency: 80, FuelType: "Diesel"}, "fuelEfficiency", "La eficiencia de combustible no puede ser mayor a 50 km/l"},
		{"fuel type unknown", CarRequest{Model: "Uno", Brand: "Fiat", Year: 2010, FuelEfficiency: 10, FuelType: "GNC"}, "fuelType", "Tipo de combustible inválido"},
		{"empty shared user", CarRequest{Model: "Uno", Brand: "Fiat", Year: 2010, FuelEfficiency: 10, FuelType: "Diesel", Users: []string{""}}, "users[0]", "Usuario inválido"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fieldsOf(t, Struct(&tt.req))
			if got[tt.field] != tt.want {
				t.Errorf("%s = %q, want %q (all: %v)", tt.field, got[tt.field], tt.want, got)
			}
		})
	}
}

func TestToCreateCar(t *testing.T) {
	req := CarRequest{
		Model: "Uno", Brand: "Fiat", Year: 2010, FuelEfficiency: 14, FuelType: "Diesel",
		Users: []string{"u2", "u1", "u2", "u3"},
	}
	data := req.ToCreateCar("u1")

	if data.Admin != "u1" {
		t.Errorf("admin = %q", data.Admin)
	}
	if len(data.Users) != 2 || data.Users[0] != "u2" || data.Users[1] != "u3" {
		t.Errorf("users = %v", data.Users)
	}
}

func TestErrorsMessage(t *testing.T) {
	err := Struct(&LoginRequest{})
	if !strings.Contains(err.Error(), "El email es requerido") {
		t.Errorf("Error() = %q", err.Error())
	}
}
