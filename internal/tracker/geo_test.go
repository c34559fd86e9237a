package tracker

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		tolerance              float64
	}{
		{"same point", 52.0, 13.0, 52.0, 13.0, 0, 0.001},
		{"one degree longitude at equator", 0, 0, 0, 1, 111195, 10},
		{"one degree latitude", 0, 0, 1, 0, 111195, 10},
		{"berlin to hamburg", 52.5200, 13.4050, 53.5511, 9.9937, 255000, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("Distance = %.1f, want %.1f ± %.1f", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"due north", 0, 0, 1, 0, 0},
		{"due east", 0, 0, 0, 1, 90},
		{"due south", 1, 0, 0, 0, 180},
		{"due west", 0, 1, 0, 0, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("Bearing = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}

func TestHeadingDelta(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{0, 0, 0},
		{10, 350, 20},
		{350, 10, 20},
		{90, 270, 180},
		{0, 180, 180},
		{45, 90, 45},
	}

	for _, tt := range tests {
		if got := headingDelta(tt.a, tt.b); math.Abs(got-tt.want) > 0.001 {
			t.Errorf("headingDelta(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
