package normalize

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNormalizeObjectLiteral(t *testing.T) {
	n := New(nil)

	got := n.Normalize("{_id: ObjectId('64f1'), name: 'Ana'}")
	want := map[string]any{"_id": "64f1", "name": "Ana"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize = %#v, want %#v", got, want)
	}
}

func TestNormalizeRepairs(t *testing.T) {
	n := New(nil)

	tests := []struct {
		name string
		in   string
		want any
	}{
		{
			name: "nested car with admin and users",
			in:   `{ _id: new ObjectId("65a"), brand: 'Toyota', fuelEfficiency: 11.5, admin: { _id: ObjectId('u1'), name: 'Ana' }, users: [ { _id: ObjectId('u2') } ] }`,
			want: map[string]any{
				"_id":            "65a",
				"brand":          "Toyota",
				"fuelEfficiency": 11.5,
				"admin":          map[string]any{"_id": "u1", "name": "Ana"},
				"users":          []any{map[string]any{"_id": "u2"}},
			},
		},
		{
			name: "already valid json",
			in:   `{"id":"1","name":"Bo"}`,
			want: map[string]any{"id": "1", "name": "Bo"},
		},
		{
			name: "escaped quotes inside single quoted value",
			in:   `{name: 'O\'Brien "Bob"'}`,
			want: map[string]any{"name": `O'Brien "Bob"`},
		},
		{
			name: "trailing comma and undefined",
			in:   `{a: 1, b: undefined, c: [true, false,],}`,
			want: map[string]any{"a": 1.0, "b": nil, "c": []any{true, false}},
		},
		{
			name: "colon inside string value is not a key",
			in:   `{start: '2024-01-01T10:00:00Z'}`,
			want: map[string]any{"start": "2024-01-01T10:00:00Z"},
		},
		{
			name: "iso date wrapper",
			in:   `{at: ISODate('2024-01-01T10:00:00Z')}`,
			want: map[string]any{"at": "2024-01-01T10:00:00Z"},
		},
		{
			name: "array of users",
			in:   `[{_id: ObjectId('a')}, {_id: ObjectId('b')}]`,
			want: []any{map[string]any{"_id": "a"}, map[string]any{"_id": "b"}},
		},
		{
			name: "constructor text inside double quoted value",
			in:   `{_id: ObjectId('64f1'), note: "see ObjectId('x') here"}`,
			want: map[string]any{"_id": "64f1", "note": "see ObjectId('x') here"},
		},
		{
			name: "constructor text inside single quoted value",
			in:   `{_id: ObjectId('64f1'), note: 'ver new Date("2024")'}`,
			want: map[string]any{"_id": "64f1", "note": `ver new Date("2024")`},
		},
		{
			name: "bare constructor",
			in:   `ObjectId('64f1')`,
			want: "64f1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New(nil)

	inputs := []any{
		"{_id: ObjectId('64f1'), name: 'Ana'}",
		map[string]any{"id": "x"},
		[]any{1.0, "a"},
		42.0,
		nil,
		"64f1a2b3c4",
		"{broken",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("Normalize not idempotent for %#v: %#v then %#v", in, once, twice)
		}
	}
}

func TestNormalizeGarbageKeepsRawAndWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := New(zap.New(core))

	garbage := "{_id: ObjectId('64f1'), name: 'Ana'"
	got := n.Normalize(garbage)
	if got != garbage {
		t.Fatalf("Normalize(garbage) = %#v, want raw string", got)
	}
	if logs.Len() != 1 {
		t.Errorf("expected one warning, got %d", logs.Len())
	}
}

func TestNormalizePassesThroughPlainValues(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := New(zap.New(core))

	obj := map[string]any{"_id": "1"}
	if got := n.Normalize(obj); !reflect.DeepEqual(got, obj) {
		t.Errorf("object changed: %#v", got)
	}
	if got := n.Normalize("64f1"); got != "64f1" {
		t.Errorf("plain id changed: %#v", got)
	}
	if logs.Len() != 0 {
		t.Errorf("plain values should not warn, got %d warnings", logs.Len())
	}
}

func TestCarFrom(t *testing.T) {
	n := New(nil)

	car := n.CarFrom(`{_id: ObjectId('c1'), brand: 'Fiat', model: 'Uno', year: 2010, fuelEfficiency: '14.5', fuelType: 'Diesel', admin: {_id: ObjectId('u1'), name: 'Ana'}, users: [{_id: ObjectId('u2'), name: 'Bo'}, 'u3']}`)
	if car == nil {
		t.Fatal("CarFrom returned nil")
	}
	if car.ID != "c1" || car.Brand != "Fiat" || car.Year != 2010 {
		t.Errorf("unexpected car %+v", car)
	}
	if car.FuelEfficiency != 14.5 || car.FuelType != "Diesel" {
		t.Errorf("fuel fields = %v %q", car.FuelEfficiency, car.FuelType)
	}
	if car.Admin == nil || car.Admin.ID != "u1" || car.Admin.Name != "Ana" {
		t.Errorf("admin = %+v", car.Admin)
	}
	if len(car.Users) != 2 || car.Users[0].ID != "u2" || car.Users[1].ID != "u3" {
		t.Errorf("users = %+v", car.Users)
	}

	// 已解析的车辆中仍可能包含字符串化的 admin/users
	parsed := n.CarFrom(map[string]any{
		"id":    "c2",
		"admin": "{_id: ObjectId('u9'), name: 'Cy'}",
		"users": []any{"{_id: ObjectId('u8')}"},
	})
	if parsed == nil || parsed.Admin == nil || parsed.Admin.ID != "u9" {
		t.Fatalf("stringified admin not repaired: %+v", parsed)
	}
	if len(parsed.Users) != 1 || parsed.Users[0].ID != "u8" {
		t.Errorf("stringified users not repaired: %+v", parsed.Users)
	}

	if got := n.CarFrom("{not a car"); got != nil {
		t.Errorf("unrepairable car should be nil, got %+v", got)
	}
	if got := n.CarFrom(nil); got != nil {
		t.Errorf("nil car should be nil, got %+v", got)
	}
}

func TestUserFrom(t *testing.T) {
	n := New(nil)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"object with id", map[string]any{"id": "u1", "name": "Ana"}, "u1"},
		{"object with _id", map[string]any{"_id": "u2"}, "u2"},
		{"oid wrapper", map[string]any{"_id": map[string]any{"$oid": "u3"}}, "u3"},
		{"literal string", "{_id: ObjectId('u4')}", "u4"},
		{"bare id", "u5", "u5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := n.UserFrom(tt.in)
			if u == nil || u.ID != tt.want {
				t.Errorf("UserFrom(%#v) = %+v, want id %q", tt.in, u, tt.want)
			}
		})
	}

	if u := n.UserFrom("not an id with spaces"); u != nil {
		t.Errorf("free text should not become a user, got %+v", u)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Año", 5, "Año"},
		{"ñañañа", 3, "ñañ..."},
		{"camión", 4, "cami..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
