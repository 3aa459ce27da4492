package tracker

import (
	"errors"
	"math"
	"testing"
	"time"
)

const baseTimestampMs = int64(1_700_000_000_000)

// walkSamples builds n fixes moving north in roughly stepMeters hops, one
// second apart.
func walkSamples(n int, stepMeters float64) []PositionSample {
	const metersPerDegreeLat = 111_195.0
	samples := make([]PositionSample, 0, n)
	lat := 52.0
	for i := 0; i < n; i++ {
		samples = append(samples, PositionSample{
			Latitude:  lat,
			Longitude: 4.0,
			Timestamp: baseTimestampMs + int64(i)*1000,
		})
		lat += stepMeters / metersPerDegreeLat
	}
	return samples
}

func startedAccumulator(t *testing.T) (*RouteAccumulator, *PushSource) {
	t.Helper()
	source := NewPushSource()
	acc := NewRouteAccumulator(source, nil)
	acc.retryDelay = time.Millisecond
	if err := acc.StartTracking(); err != nil {
		t.Fatalf("StartTracking: %v", err)
	}
	return acc, source
}

func TestStartTrackingResetsState(t *testing.T) {
	acc, source := startedAccumulator(t)

	for _, s := range walkSamples(5, 5) {
		source.Push(s)
	}
	if acc.Stats().TotalDistanceKm == 0 {
		t.Fatal("expected distance after walking samples")
	}

	if err := acc.StartTracking(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	stats := acc.Stats()
	if stats.TotalDistanceKm != 0 || len(stats.RoutePoints) != 0 {
		t.Errorf("restart kept old state: distance=%v points=%d", stats.TotalDistanceKm, len(stats.RoutePoints))
	}
	if stats.GPSStatus != GPSAcquiring {
		t.Errorf("status after restart = %q, want acquiring", stats.GPSStatus)
	}
	if !stats.IsTracking {
		t.Error("expected IsTracking after restart")
	}
}

func TestWalkAccumulatesDistance(t *testing.T) {
	acc, source := startedAccumulator(t)

	// Ten fixes, ~5 m apart, one second cadence. Nine segments of ~5 m.
	for _, s := range walkSamples(10, 5) {
		source.Push(s)
	}

	stats := acc.Stats()
	want := 0.045
	if math.Abs(stats.TotalDistanceKm-want) > want*0.15 {
		t.Errorf("TotalDistanceKm = %v, want ~%v", stats.TotalDistanceKm, want)
	}
	if len(stats.RoutePoints) != 10 {
		t.Errorf("RoutePoints = %d, want 10", len(stats.RoutePoints))
	}
	if stats.GPSStatus != GPSActive {
		t.Errorf("GPSStatus = %q, want active", stats.GPSStatus)
	}
	if stats.CurrentPosition == nil || stats.CurrentPosition.Timestamp != baseTimestampMs+9000 {
		t.Errorf("CurrentPosition = %+v, want last sample", stats.CurrentPosition)
	}
	if stats.AvgSpeedKmh <= 0 || stats.MaxSpeedKmh < stats.AvgSpeedKmh {
		t.Errorf("speed summary avg=%v max=%v", stats.AvgSpeedKmh, stats.MaxSpeedKmh)
	}
}

func TestTeleportSegmentRejected(t *testing.T) {
	acc, source := startedAccumulator(t)

	source.Push(PositionSample{Latitude: 52.0, Longitude: 4.0, Timestamp: baseTimestampMs})
	source.Push(PositionSample{Latitude: 52.00005, Longitude: 4.0, Timestamp: baseTimestampMs + 1000})
	before := acc.Stats().TotalDistanceKm

	// ~190 km in 200 ms. Both filter conditions fail.
	source.Push(PositionSample{Latitude: 53.5, Longitude: 5.5, Timestamp: baseTimestampMs + 1200})

	stats := acc.Stats()
	if stats.TotalDistanceKm != before {
		t.Errorf("teleport changed distance: %v -> %v", before, stats.TotalDistanceKm)
	}
	if len(stats.RoutePoints) != 3 {
		t.Errorf("RoutePoints = %d, want 3 (rejected point still recorded)", len(stats.RoutePoints))
	}
	if stats.CurrentSpeedKmh != maxCurrentSpeedKmh {
		t.Errorf("CurrentSpeedKmh = %v, want capped at %v", stats.CurrentSpeedKmh, maxCurrentSpeedKmh)
	}

	// The rejected fix is still the reference for the next segment: a short
	// hop from the teleport location is accepted.
	source.Push(PositionSample{Latitude: 53.50005, Longitude: 5.5, Timestamp: baseTimestampMs + 2200})
	after := acc.Stats().TotalDistanceKm
	if after <= before {
		t.Errorf("segment after rejected fix not accumulated: %v -> %v", before, after)
	}
}

func TestSpeedHistoryKeepsUncappedValues(t *testing.T) {
	acc, source := startedAccumulator(t)

	// ~89 m in 1 s: accepted by the short-segment rule, but ~320 km/h.
	source.Push(PositionSample{Latitude: 52.0, Longitude: 4.0, Timestamp: baseTimestampMs})
	source.Push(PositionSample{Latitude: 52.0008, Longitude: 4.0, Timestamp: baseTimestampMs + 1000})

	stats := acc.Stats()
	if stats.CurrentSpeedKmh != maxCurrentSpeedKmh {
		t.Errorf("CurrentSpeedKmh = %v, want capped at %v", stats.CurrentSpeedKmh, maxCurrentSpeedKmh)
	}
	if stats.MaxSpeedKmh <= maxCurrentSpeedKmh {
		t.Errorf("MaxSpeedKmh = %v, want uncapped history value above %v", stats.MaxSpeedKmh, maxCurrentSpeedKmh)
	}
}

func TestSourceSpeedPreferred(t *testing.T) {
	acc, source := startedAccumulator(t)

	speed := 2.5 // m/s
	source.Push(PositionSample{Latitude: 52.0, Longitude: 4.0, Speed: &speed, Timestamp: baseTimestampMs})

	stats := acc.Stats()
	if math.Abs(stats.CurrentSpeedKmh-9.0) > 1e-9 {
		t.Errorf("CurrentSpeedKmh = %v, want 9.0 from source-reported 2.5 m/s", stats.CurrentSpeedKmh)
	}
}

func TestStopTrackingIdempotent(t *testing.T) {
	acc, source := startedAccumulator(t)

	for _, s := range walkSamples(4, 5) {
		source.Push(s)
	}
	distance := acc.Stats().TotalDistanceKm

	acc.StopTracking()
	acc.StopTracking()

	stats := acc.Stats()
	if stats.IsTracking {
		t.Error("IsTracking still true after stop")
	}
	if stats.GPSStatus != GPSInactive {
		t.Errorf("GPSStatus = %q, want inactive", stats.GPSStatus)
	}
	if stats.TotalDistanceKm != distance {
		t.Errorf("stop changed totals: %v -> %v", distance, stats.TotalDistanceKm)
	}

	// A fix after stop is dropped by the cleared watch.
	if source.Push(PositionSample{Latitude: 52.0, Longitude: 4.0, Timestamp: baseTimestampMs}) {
		t.Error("push delivered after watch cleared")
	}
}

type failingSource struct{}

func (failingSource) Watch(opts WatchOptions, onUpdate func(PositionSample), onError func(error)) (WatchHandle, error) {
	return 0, errors.New("permission denied")
}

func (failingSource) ClearWatch(handle WatchHandle) {}

func TestStartTrackingFailureKeepsTrackingFlag(t *testing.T) {
	acc := NewRouteAccumulator(failingSource{}, nil)

	if err := acc.StartTracking(); err == nil {
		t.Fatal("expected watch error")
	}

	stats := acc.Stats()
	if stats.GPSStatus != GPSError {
		t.Errorf("GPSStatus = %q, want error", stats.GPSStatus)
	}
	if !stats.IsTracking {
		t.Error("IsTracking should stay true so the client can offer a retry")
	}
	if stats.Error == "" {
		t.Error("expected an error message in stats")
	}
}

func TestSourceErrorThenRetry(t *testing.T) {
	acc, source := startedAccumulator(t)

	source.Push(PositionSample{Latitude: 52.0, Longitude: 4.0, Timestamp: baseTimestampMs})
	source.Fail(errors.New("fix timeout"))

	stats := acc.Stats()
	if stats.GPSStatus != GPSError || stats.Error == "" {
		t.Fatalf("after source error: status=%q error=%q", stats.GPSStatus, stats.Error)
	}

	if err := acc.RetryGPS(); err != nil {
		t.Fatalf("RetryGPS: %v", err)
	}
	stats = acc.Stats()
	if stats.GPSStatus != GPSAcquiring {
		t.Errorf("GPSStatus after retry = %q, want acquiring", stats.GPSStatus)
	}
	if stats.TotalDistanceKm != 0 || len(stats.RoutePoints) != 0 {
		t.Error("retry should reset accumulated state")
	}
	if stats.Error != "" {
		t.Errorf("retry left stale error %q", stats.Error)
	}
}
