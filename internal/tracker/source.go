package tracker

import (
	"fmt"
	"sync"
	"time"
)

// PositionSample is one fix delivered by a position source. Samples are
// immutable once created; the accumulator derives route points from them and
// discards the rest.
type PositionSample struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`        // horizontal error, meters
	Speed     *float64 `json:"speed,omitempty"` // m/s, when the source reports it
	Timestamp int64    `json:"timestamp"`       // milliseconds since epoch
}

// WatchOptions mirror the geolocation watch contract: continuous updates,
// not a one-shot poll.
type WatchOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration // 0 = never serve a cached fix
}

// WatchHandle identifies an active watch subscription.
type WatchHandle int

// Source is the geolocation capability behind a uniform interface. The
// platform variant is picked once at composition time via NewSource rather
// than branching on platform strings at every call site.
type Source interface {
	Watch(opts WatchOptions, onUpdate func(PositionSample), onError func(error)) (WatchHandle, error)
	ClearWatch(handle WatchHandle)
}

// Pusher is implemented by sources whose samples are delivered externally
// (the native bridge path: clients POST fixes or stream them over WebSocket).
type Pusher interface {
	// Push delivers a sample to every active watch. Returns false when no
	// watch is active and the sample was dropped.
	Push(sample PositionSample) bool
}

// NewSource selects the platform implementation. mode is read from config
// once at startup; "simulated" yields the demo walk generator, everything
// else the push-fed source.
func NewSource(mode string) Source {
	if mode == "simulated" {
		return NewSimulatedSource(52.3676, 4.9041)
	}
	return NewPushSource()
}

// PushSource relays externally delivered samples to watch callbacks in
// arrival order.
type PushSource struct {
	mu      sync.Mutex
	next    WatchHandle
	watches map[WatchHandle]watchFuncs
}

type watchFuncs struct {
	onUpdate func(PositionSample)
	onError  func(error)
}

func NewPushSource() *PushSource {
	return &PushSource{watches: make(map[WatchHandle]watchFuncs)}
}

func (s *PushSource) Watch(opts WatchOptions, onUpdate func(PositionSample), onError func(error)) (WatchHandle, error) {
	if onUpdate == nil {
		return 0, fmt.Errorf("position watch requires an update callback")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	handle := s.next
	s.watches[handle] = watchFuncs{onUpdate: onUpdate, onError: onError}
	return handle, nil
}

func (s *PushSource) ClearWatch(handle WatchHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watches, handle)
}

func (s *PushSource) Push(sample PositionSample) bool {
	s.mu.Lock()
	targets := make([]watchFuncs, 0, len(s.watches))
	for _, w := range s.watches {
		targets = append(targets, w)
	}
	s.mu.Unlock()

	for _, w := range targets {
		w.onUpdate(sample)
	}
	return len(targets) > 0
}

// Fail reports a source-level error (permission denied, fix timeout) to every
// active watch.
func (s *PushSource) Fail(err error) {
	s.mu.Lock()
	targets := make([]watchFuncs, 0, len(s.watches))
	for _, w := range s.watches {
		targets = append(targets, w)
	}
	s.mu.Unlock()

	for _, w := range targets {
		if w.onError != nil {
			w.onError(err)
		}
	}
}
