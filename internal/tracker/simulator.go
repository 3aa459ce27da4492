package tracker

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimulatedSource fakes a steady walk for platforms without real location
// hardware (the web demo). All simulation state lives on the struct with an
// explicit Start/Stop/Reset lifecycle instead of package-level variables, so
// two simulators never contaminate each other.
type SimulatedSource struct {
	mu       sync.Mutex
	seedLat  float64
	seedLng  float64
	lat      float64
	lng      float64
	heading  float64
	ticks    int
	cadence  time.Duration
	rng      *rand.Rand
	stop     chan struct{}
	running  bool
	next     WatchHandle
	watches  map[WatchHandle]watchFuncs
}

// Roughly 1.1 m per tick at 1 Hz, a brisk walk.
const simStepMeters = 1.1

func NewSimulatedSource(seedLat, seedLng float64) *SimulatedSource {
	s := &SimulatedSource{
		seedLat: seedLat,
		seedLng: seedLng,
		cadence: time.Second,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		watches: make(map[WatchHandle]watchFuncs),
	}
	s.resetLocked()
	return s
}

func (s *SimulatedSource) Watch(opts WatchOptions, onUpdate func(PositionSample), onError func(error)) (WatchHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	handle := s.next
	s.watches[handle] = watchFuncs{onUpdate: onUpdate, onError: onError}
	if !s.running {
		s.startLocked()
	}
	return handle, nil
}

func (s *SimulatedSource) ClearWatch(handle WatchHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watches, handle)
	if len(s.watches) == 0 && s.running {
		s.stopLocked()
	}
}

// Start begins emitting ticks even with no change to the watch set.
func (s *SimulatedSource) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.startLocked()
	}
}

// Stop halts emission but keeps walk state for a later resume.
func (s *SimulatedSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.stopLocked()
	}
}

// Reset returns the simulated walker to its seed coordinate.
func (s *SimulatedSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *SimulatedSource) resetLocked() {
	s.lat = s.seedLat
	s.lng = s.seedLng
	s.heading = s.rng.Float64() * 2 * math.Pi
	s.ticks = 0
}

func (s *SimulatedSource) startLocked() {
	s.running = true
	s.stop = make(chan struct{})
	go s.run(s.stop)
}

func (s *SimulatedSource) stopLocked() {
	close(s.stop)
	s.running = false
}

func (s *SimulatedSource) run(stop chan struct{}) {
	ticker := time.NewTicker(s.cadence)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.advance()
		}
	}
}

// advance moves the walker one step in a slowly wandering direction and
// delivers the resulting sample to every watch.
func (s *SimulatedSource) advance() {
	s.mu.Lock()
	s.heading += (s.rng.Float64() - 0.5) * 0.4
	// Degrees per meter: 1 deg latitude ~ 111,320 m.
	dLat := simStepMeters * math.Cos(s.heading) / 111320.0
	dLng := simStepMeters * math.Sin(s.heading) / (111320.0 * math.Cos(s.lat*math.Pi/180))
	s.lat += dLat
	s.lng += dLng
	s.ticks++

	sample := PositionSample{
		Latitude:  s.lat,
		Longitude: s.lng,
		Accuracy:  5,
		Timestamp: time.Now().UnixMilli(),
	}
	targets := make([]watchFuncs, 0, len(s.watches))
	for _, w := range s.watches {
		targets = append(targets, w)
	}
	s.mu.Unlock()

	for _, w := range targets {
		w.onUpdate(sample)
	}
}

// Ticks returns how many samples have been generated since the last reset.
func (s *SimulatedSource) Ticks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}
