package tracker

import (
	"fmt"
	"log"
	"sync"
	"time"

	"hotstepper-backend/internal/geo"
	"hotstepper-backend/internal/models"
)

// GPSStatus is the accumulator's view of the position source
type GPSStatus string

const (
	GPSInactive  GPSStatus = "inactive"  // No watch running
	GPSAcquiring GPSStatus = "acquiring" // Watch started, no fix yet
	GPSActive    GPSStatus = "active"    // Receiving fixes
	GPSError     GPSStatus = "error"     // Source failure; manual retry only
)

const (
	// Upper bound on the displayed speed. A walker or runner never moves
	// this fast; anything above it is a GPS jump artifact.
	maxCurrentSpeedKmh = 50.0

	// Bounded acquisition timeout requested from the source.
	watchTimeout = 15 * time.Second

	// Fixed delay between stop and restart in RetryGPS. No backoff.
	defaultRetryDelay = 2 * time.Second
)

// Stats is a read-only snapshot of the accumulator, safe to hand to the
// session manager or serialize for the client.
type Stats struct {
	TotalDistanceKm float64             `json:"total_distance_km"`
	CurrentSpeedKmh float64             `json:"current_speed_kmh"`
	AvgSpeedKmh     float64             `json:"avg_speed_kmh"`
	MaxSpeedKmh     float64             `json:"max_speed_kmh"`
	CurrentPosition *models.RoutePoint  `json:"current_position,omitempty"`
	RoutePoints     []models.RoutePoint `json:"route_points"`
	IsTracking      bool                `json:"is_tracking"`
	GPSStatus       GPSStatus           `json:"gps_status"`
	Error           string              `json:"error,omitempty"`
}

// RouteAccumulator consumes position samples, filters implausible segments,
// and maintains running distance and speed statistics for one tracking cycle.
// Safe for use from concurrent callbacks, though sources deliver in order.
type RouteAccumulator struct {
	mu sync.Mutex

	source   Source
	watch    WatchHandle
	watching bool

	isTracking bool
	gpsStatus  GPSStatus
	lastError  string

	currentPosition *models.RoutePoint
	routePoints     []models.RoutePoint
	totalDistanceKm float64
	currentSpeedKmh float64
	avgSpeedKmh     float64
	maxSpeedKmh     float64
	speedHistory    []float64

	retryDelay time.Duration
	onUpdate   func(Stats)
}

// NewRouteAccumulator wires an accumulator to a position source. onUpdate is
// invoked with a stats snapshot after every processed sample and on source
// errors; it may be nil.
func NewRouteAccumulator(source Source, onUpdate func(Stats)) *RouteAccumulator {
	return &RouteAccumulator{
		source:     source,
		gpsStatus:  GPSInactive,
		retryDelay: defaultRetryDelay,
		onUpdate:   onUpdate,
	}
}

// StartTracking resets all statistics and subscribes to the source's
// continuous watch. On subscription failure the status flips to error but
// isTracking stays true so the caller can surface a retry affordance.
func (a *RouteAccumulator) StartTracking() error {
	a.mu.Lock()
	if a.watching {
		a.source.ClearWatch(a.watch)
		a.watching = false
	}
	a.currentPosition = nil
	a.routePoints = nil
	a.totalDistanceKm = 0
	a.currentSpeedKmh = 0
	a.avgSpeedKmh = 0
	a.maxSpeedKmh = 0
	a.speedHistory = nil
	a.isTracking = true
	a.gpsStatus = GPSAcquiring
	a.lastError = ""
	a.mu.Unlock()

	handle, err := a.source.Watch(WatchOptions{
		HighAccuracy: true,
		Timeout:      watchTimeout,
		MaximumAge:   0,
	}, a.OnPositionUpdate, a.onSourceError)
	if err != nil {
		a.mu.Lock()
		a.gpsStatus = GPSError
		a.lastError = fmt.Sprintf("failed to start GPS watch: %v", err)
		a.mu.Unlock()
		a.notify()
		return err
	}

	a.mu.Lock()
	a.watch = handle
	a.watching = true
	a.mu.Unlock()
	return nil
}

// StopTracking clears the watch subscription on every path. Idempotent.
// Accumulated totals are intentionally left in place for the session manager
// to read before its own reset.
func (a *RouteAccumulator) StopTracking() {
	a.mu.Lock()
	if a.watching {
		a.source.ClearWatch(a.watch)
		a.watching = false
	}
	a.isTracking = false
	a.gpsStatus = GPSInactive
	a.mu.Unlock()
}

// RetryGPS stops, waits a short fixed delay, and starts again. There is no
// backoff and no retry cap; recovery stays under the user's control.
func (a *RouteAccumulator) RetryGPS() error {
	a.StopTracking()
	time.Sleep(a.retryDelay)
	return a.StartTracking()
}

// OnPositionUpdate processes one sample in delivery order. The derived route
// point is always appended and becomes the reference for the next segment,
// even when the acceptance filter rejects the segment; rejection only
// suppresses distance and speed-history accumulation. A single bad fix can
// therefore poison exactly one following segment, which is an accepted
// tradeoff of the filter.
func (a *RouteAccumulator) OnPositionUpdate(sample PositionSample) {
	a.mu.Lock()

	point := models.RoutePoint{
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Timestamp: sample.Timestamp,
	}

	if a.currentPosition != nil {
		prev := *a.currentPosition
		segmentKm := geo.CalculateDistance(prev.Latitude, prev.Longitude, point.Latitude, point.Longitude)
		elapsedSec := float64(point.Timestamp-prev.Timestamp) / 1000.0

		speedKmh := 0.0
		if sample.Speed != nil {
			speedKmh = *sample.Speed * 3.6
		} else if elapsedSec > 0 {
			speedKmh = segmentKm / elapsedSec * 3600
		}

		if geo.AcceptSegment(segmentKm, elapsedSec) {
			a.totalDistanceKm += segmentKm
			a.speedHistory = append(a.speedHistory, speedKmh)
		}

		// Latest sample always drives the displayed speed, capped to
		// suppress jump artifacts.
		a.currentSpeedKmh = speedKmh
		if a.currentSpeedKmh > maxCurrentSpeedKmh {
			a.currentSpeedKmh = maxCurrentSpeedKmh
		}
	} else if sample.Speed != nil {
		a.currentSpeedKmh = *sample.Speed * 3.6
		if a.currentSpeedKmh > maxCurrentSpeedKmh {
			a.currentSpeedKmh = maxCurrentSpeedKmh
		}
	}

	a.routePoints = append(a.routePoints, point)
	a.currentPosition = &point

	a.avgSpeedKmh, a.maxSpeedKmh = summarizeSpeeds(a.speedHistory)

	a.gpsStatus = GPSActive
	a.lastError = ""
	a.mu.Unlock()

	a.notify()
}

func summarizeSpeeds(history []float64) (avg, max float64) {
	if len(history) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, s := range history {
		sum += s
		if s > max {
			max = s
		}
	}
	return sum / float64(len(history)), max
}

// onSourceError captures a source failure into state. No distinction is made
// between transient and permanent failures; both wait for an explicit retry.
func (a *RouteAccumulator) onSourceError(err error) {
	log.Printf("❌ GPS source error: %v", err)
	a.mu.Lock()
	a.gpsStatus = GPSError
	a.lastError = err.Error()
	a.mu.Unlock()
	a.notify()
}

// Stats returns a snapshot with a copied route-point slice.
func (a *RouteAccumulator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statsLocked()
}

func (a *RouteAccumulator) statsLocked() Stats {
	points := make([]models.RoutePoint, len(a.routePoints))
	copy(points, a.routePoints)

	var pos *models.RoutePoint
	if a.currentPosition != nil {
		p := *a.currentPosition
		pos = &p
	}

	return Stats{
		TotalDistanceKm: a.totalDistanceKm,
		CurrentSpeedKmh: a.currentSpeedKmh,
		AvgSpeedKmh:     a.avgSpeedKmh,
		MaxSpeedKmh:     a.maxSpeedKmh,
		CurrentPosition: pos,
		RoutePoints:     points,
		IsTracking:      a.isTracking,
		GPSStatus:       a.gpsStatus,
		Error:           a.lastError,
	}
}

func (a *RouteAccumulator) notify() {
	if a.onUpdate == nil {
		return
	}
	a.onUpdate(a.Stats())
}
