package models

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"utc", "2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"fractional", "2024-01-15T10:30:00.250Z", time.Date(2024, 1, 15, 10, 30, 0, 250_000_000, time.UTC)},
		{"offset normalized", "2024-01-15T12:30:00+02:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"zone-less read as utc", "2024-01-15T10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"zone-less fractional", "2024-01-15T10:30:00.5", time.Date(2024, 1, 15, 10, 30, 0, 500_000_000, time.UTC)},
		{"surrounding space", "  2024-01-15T10:30:00Z ", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if got.Location() != time.UTC {
				t.Errorf("expected UTC, got %v", got.Location())
			}
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2024-01-15", "15/01/2024 10:30", "2024-13-01T00:00:00Z"} {
		if _, err := ParseTimestamp(in); err == nil {
			t.Errorf("%q: expected error", in)
		}
	}
}
