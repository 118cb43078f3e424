package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestFeaturesRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		features map[string]float64
	}{
		{"empty", nil},
		{"values", map[string]float64{"pm10": 40, "so2": 3.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := encodeFeatures(tt.features)
			if err != nil {
				t.Fatalf("encodeFeatures() error = %v", err)
			}
			var raw []byte
			if enc != nil {
				raw = []byte(enc.(string))
			}
			got, err := decodeFeatures(raw)
			if err != nil {
				t.Fatalf("decodeFeatures() error = %v", err)
			}
			if len(got) != len(tt.features) {
				t.Fatalf("decodeFeatures() = %v, want %v", got, tt.features)
			}
			for k, v := range tt.features {
				if got[k] != v {
					t.Errorf("decodeFeatures()[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestDecodeFeatures_Invalid(t *testing.T) {
	if _, err := decodeFeatures([]byte(`{"pm10": "x"}`)); err == nil {
		t.Error("decodeFeatures() expected error for non-numeric value")
	}
	if got, err := decodeFeatures([]byte("null")); err != nil || got != nil {
		t.Errorf("decodeFeatures(null) = %v, %v, want nil, nil", got, err)
	}
}

func TestIsDuplicate(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate", dup, true},
		{"wrapped duplicate", fmt.Errorf("insert: %w", dup), true},
		{"other mysql error", &mysql.MySQLError{Number: 1146}, false},
		{"plain error", errors.New("Duplicate entry"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicate(tt.err); got != tt.want {
				t.Errorf("isDuplicate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc" {
		t.Errorf("truncate() = %v, want abc", got)
	}
	if got := truncate("µgµg", 2); got != "µg" {
		t.Errorf("truncate() = %v, want µg", got)
	}
	if got := truncate("ab", 5); got != "ab" {
		t.Errorf("truncate() = %v, want ab", got)
	}
}
