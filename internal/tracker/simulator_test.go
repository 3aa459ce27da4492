package tracker

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestSimulatorDeliversWalkSamples(t *testing.T) {
	s := NewSimulatedSource(52.3676, 4.9041)
	s.cadence = 2 * time.Millisecond

	var mu sync.Mutex
	var samples []PositionSample
	handle, err := s.Watch(WatchOptions{}, func(sample PositionSample) {
		mu.Lock()
		samples = append(samples, sample)
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	s.ClearWatch(handle)

	mu.Lock()
	got := append([]PositionSample(nil), samples...)
	mu.Unlock()

	if len(got) < 3 {
		t.Fatalf("got %d samples, want at least 3", len(got))
	}
	if s.Ticks() < len(got) {
		t.Errorf("Ticks() = %d, below delivered sample count %d", s.Ticks(), len(got))
	}

	// Consecutive fixes are a step of ~1.1 m apart.
	for i := 1; i < len(got); i++ {
		km := distanceBetween(got[i-1], got[i])
		if km < 0.0005 || km > 0.003 {
			t.Errorf("step %d spans %.5f km, want ~0.0011", i, km)
		}
	}
}

// distanceBetween is a coarse equirectangular check, good enough for
// centimeter-scale assertions.
func distanceBetween(a, b PositionSample) float64 {
	dLat := (b.Latitude - a.Latitude) * 111.32
	dLng := (b.Longitude - a.Longitude) * 111.32 * 0.61 // cos(52°)
	return math.Hypot(dLat, dLng)
}

func TestSimulatorResetReturnsToSeed(t *testing.T) {
	s := NewSimulatedSource(52.3676, 4.9041)
	s.cadence = 2 * time.Millisecond

	handle, err := s.Watch(WatchOptions{}, func(PositionSample) {}, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	s.ClearWatch(handle)

	if s.Ticks() == 0 {
		t.Fatal("simulator never advanced")
	}

	s.Reset()
	if s.Ticks() != 0 {
		t.Errorf("Ticks() after reset = %d, want 0", s.Ticks())
	}
	s.mu.Lock()
	lat, lng := s.lat, s.lng
	s.mu.Unlock()
	if lat != 52.3676 || lng != 4.9041 {
		t.Errorf("position after reset = (%v, %v), want seed", lat, lng)
	}
}

func TestSimulatorStopHaltsEmission(t *testing.T) {
	s := NewSimulatedSource(52.3676, 4.9041)
	s.cadence = 2 * time.Millisecond

	if _, err := s.Watch(WatchOptions{}, func(PositionSample) {}, nil); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	s.Stop()
	// A tick already dequeued when Stop landed may still land.
	time.Sleep(5 * time.Millisecond)
	ticks := s.Ticks()
	time.Sleep(20 * time.Millisecond)
	if got := s.Ticks(); got != ticks {
		t.Errorf("Ticks advanced after Stop: %d -> %d", ticks, got)
	}
}
