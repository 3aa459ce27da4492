package geo

import (
	"math"
	"testing"
)

func TestCalculateDistanceIdentity(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{52.3676, 4.9041},
		{-33.8688, 151.2093},
	}
	for _, p := range points {
		if d := CalculateDistance(p[0], p[1], p[0], p[1]); d != 0 {
			t.Errorf("distance from (%v,%v) to itself = %v, want 0", p[0], p[1], d)
		}
	}
}

func TestCalculateDistanceSymmetry(t *testing.T) {
	pairs := [][4]float64{
		{52.3676, 4.9041, 52.3680, 4.9045},
		{0, 0, 0, 1},
		{37.3329, -121.8866, 37.3361, -121.8869},
		{-6.2, 106.816, -6.9175, 107.6191},
	}
	for _, p := range pairs {
		ab := CalculateDistance(p[0], p[1], p[2], p[3])
		ba := CalculateDistance(p[2], p[3], p[0], p[1])
		if math.Abs(ab-ba) > 1e-12 {
			t.Errorf("asymmetric distance: %v vs %v for %v", ab, ba, p)
		}
	}
}

func TestCalculateDistanceKnownValues(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolerance              float64 // fraction of wantKm
	}{
		{"amsterdam short hop", 52.3676, 4.9041, 52.3680, 4.9045, 0.052, 0.10},
		{"one degree of longitude at equator", 0, 0, 0, 1, 111.19, 0.005},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateDistance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantKm) > tt.wantKm*tt.tolerance {
				t.Errorf("CalculateDistance() = %v km, want %v km ±%.1f%%", got, tt.wantKm, tt.tolerance*100)
			}
		})
	}
}

func TestCalculateDistancePropagatesNaN(t *testing.T) {
	if d := CalculateDistance(math.NaN(), 4.9, 52.3, 4.9); !math.IsNaN(d) {
		t.Errorf("expected NaN, got %v", d)
	}
}

func TestAcceptSegment(t *testing.T) {
	tests := []struct {
		name       string
		distanceKm float64
		elapsedSec float64
		want       bool
	}{
		{"small hop in short time", 0.005, 0.5, true},
		{"teleport: 5 km in 200 ms", 5.0, 0.2, false},
		{"slow jump: 5 km in 120 s", 5.0, 120, true},
		{"boundary: exactly 0.1 km at 1 s", 0.1, 1.0, false},
		{"just under distance threshold", 0.099, 0.1, true},
		{"just over time threshold", 2.0, 1.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AcceptSegment(tt.distanceKm, tt.elapsedSec); got != tt.want {
				t.Errorf("AcceptSegment(%v, %v) = %v, want %v", tt.distanceKm, tt.elapsedSec, got, tt.want)
			}
		})
	}
}
