package core

import (
	"testing"
	"time"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "Ann", "Ann"},
		{"whole float", float64(42), "42"},
		{"fraction", 3.5, "3.5"},
		{"negative fraction", -0.125, "-0.125"},
		{"large float has no exponent", 1234567890123.0, "1234567890123"},
		{"int", 7, "7"},
		{"int64", int64(-9), "-9"},
		{"true", true, "true"},
		{"false", false, "false"},
		{"date", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "2024-01-15"},
		{"date time", time.Date(2024, 1, 15, 9, 30, 5, 0, time.UTC), "2024-01-15 09:30:05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.in); got != tt.want {
				t.Errorf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRowRecord_MarshalJSON(t *testing.T) {
	rec := record(
		"name", "Ann",
		"age", float64(42),
		"joined", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	)
	rec.Set("name", "Bo") // keeps position

	got, err := rec.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	want := `{"name":"Bo","age":42,"joined":"2024-01-15"}`
	if string(got) != want {
		t.Errorf("MarshalJSON() = %s, want %s", got, want)
	}
}

func TestDelimiters_Validate(t *testing.T) {
	tests := []struct {
		name    string
		d       Delimiters
		wantErr bool
	}{
		{"curly", Delimiters{"{{", "}}"}, false},
		{"single chars", Delimiters{"[", "]"}, false},
		{"missing start", Delimiters{"", "}}"}, true},
		{"blank end", Delimiters{"{{", "  "}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && KindOf(err) != KindMissingInput {
				t.Errorf("KindOf() = %q, want %q", KindOf(err), KindMissingInput)
			}
		})
	}
}
