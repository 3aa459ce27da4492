package tracker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"hotstepper-backend/internal/models"

	"github.com/google/uuid"
)

// SessionStore is the persistence boundary for session records. The sqlx
// implementation lives in internal/database; tests use an in-memory store.
type SessionStore interface {
	// CreateSession persists a minimal active record when a session starts.
	CreateSession(ctx context.Context, s *models.Session) error
	// SyncSessionStats writes the running statistics mid-session.
	// Fire-and-forget callers tolerate last-write-wins.
	SyncSessionStats(ctx context.Context, s *models.Session) error
	// FinishSession updates the same record in place with the final
	// snapshot; it never creates a fresh row.
	FinishSession(ctx context.Context, s *models.Session) error
	// ActiveSession returns the user's active session, or nil when none.
	ActiveSession(ctx context.Context, userID string) (*models.Session, error)
}

// ErrSessionActive is returned when Start is called while a session is
// already running for the user.
var ErrSessionActive = errors.New("a session is already active")

// Rough walking average used to estimate steps for GPS sessions when the
// client never posted a pedometer count.
const stepsPerKm = 1312

// syncInterval throttles mid-session persistence writes.
const syncInterval = 5 * time.Second

// SessionManager orchestrates one user's session lifecycle: start → active →
// end, with the persisted record as the source of truth and the in-memory
// state as a disposable cache rebuilt each session.
type SessionManager struct {
	userID  string
	store   SessionStore
	acc     *RouteAccumulator
	source  Source
	publish func(userID string, data interface{})

	mu       sync.Mutex
	session  models.Session
	stopTick chan struct{}
	lastSync time.Time
}

// NewSessionManager builds the manager and its route accumulator on top of
// the given source. publish receives live session updates and may be nil.
func NewSessionManager(userID string, store SessionStore, source Source, publish func(userID string, data interface{})) *SessionManager {
	m := &SessionManager{
		userID:  userID,
		store:   store,
		source:  source,
		publish: publish,
	}
	m.acc = NewRouteAccumulator(source, m.handleStats)
	return m
}

// Start creates a persisted active record, starts the 1 Hz duration ticker,
// and, for GPS sessions, kicks off a fresh tracking cycle. Starting while a
// session is active is refused.
func (m *SessionManager) Start(ctx context.Context, dataSource models.DataSource) (*models.Session, error) {
	m.mu.Lock()
	if m.session.ID != "" {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}

	now := time.Now().Unix()
	session := models.Session{
		ID:         uuid.New().String(),
		UserID:     m.userID,
		DataSource: dataSource,
		Status:     models.SessionStatusActive,
		StartedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := m.store.CreateSession(ctx, &session); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	m.session = session
	m.startTickerLocked()
	m.mu.Unlock()

	if dataSource == models.DataSourceGPS {
		if err := m.acc.StartTracking(); err != nil {
			// Watch failure is not fatal: the session stays active and
			// the client is shown the retry affordance.
			log.Printf("⚠️  Session %s started but GPS watch failed: %v", session.ID, err)
		}
	}

	m.publishSession(session)
	return &session, nil
}

// End stops tracking, persists the final snapshot in place, resets local
// state, and returns an owned copy of the snapshot for the caller to fold
// into daily totals. Without an active session it is a no-op.
//
// On a persistence failure the snapshot is nil and local state is NOT reset;
// callers must tolerate a locally dangling active session.
func (m *SessionManager) End(ctx context.Context) (*models.SessionSnapshot, error) {
	m.mu.Lock()
	if m.session.ID == "" {
		m.mu.Unlock()
		return nil, nil
	}
	m.stopTickerLocked()
	m.mu.Unlock()

	m.acc.StopTracking()
	stats := m.acc.Stats()

	m.mu.Lock()
	now := time.Now().Unix()
	endedAt := now

	session := m.session
	session.Status = models.SessionStatusCompleted
	session.EndedAt = &endedAt
	session.DurationSeconds = endedAt - session.StartedAt
	if session.DurationSeconds < 0 {
		session.DurationSeconds = 0
	}
	if session.DataSource == models.DataSourceGPS {
		session.DistanceKm = stats.TotalDistanceKm
		session.AvgSpeedKmh = stats.AvgSpeedKmh
		session.MaxSpeedKmh = stats.MaxSpeedKmh
		session.AvgPaceMinKm = paceMinPerKm(stats.AvgSpeedKmh)
		session.RoutePoints = stats.RoutePoints
		if session.Steps == 0 {
			session.Steps = int(stats.TotalDistanceKm * stepsPerKm)
		}
	}
	session.UpdatedAt = now
	m.mu.Unlock()

	if err := m.store.FinishSession(ctx, &session); err != nil {
		log.Printf("❌ Failed to persist session end for %s: %v", session.ID, err)
		return nil, err
	}

	snapshot := &models.SessionSnapshot{
		SessionID:       session.ID,
		UserID:          session.UserID,
		DataSource:      session.DataSource,
		StartedAt:       session.StartedAt,
		EndedAt:         endedAt,
		DurationSeconds: session.DurationSeconds,
		DistanceKm:      session.DistanceKm,
		Steps:           session.Steps,
		AvgSpeedKmh:     session.AvgSpeedKmh,
		MaxSpeedKmh:     session.MaxSpeedKmh,
		AvgPaceMinPerKm: session.AvgPaceMinKm,
		RoutePoints:     session.RoutePoints,
	}

	m.mu.Lock()
	m.session = models.Session{}
	m.mu.Unlock()

	m.publishSession(session)
	return snapshot, nil
}

// FetchActive rehydrates local state from a persisted active session so a
// session survives an app reload. The duration ticker restarts; GPS watching
// does not resume automatically and must be restarted by the caller.
func (m *SessionManager) FetchActive(ctx context.Context) (*models.Session, error) {
	row, err := m.store.ActiveSession(ctx, m.userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	m.mu.Lock()
	if m.session.ID == "" {
		m.session = *row
		m.session.DurationSeconds = m.session.ElapsedSeconds()
		m.startTickerLocked()
	}
	session := m.session
	m.mu.Unlock()

	return &session, nil
}

// Feed delivers a client-posted position sample to the underlying source.
// Returns false when the source is not push-fed or no watch is active.
func (m *SessionManager) Feed(sample PositionSample) bool {
	pusher, ok := m.source.(Pusher)
	if !ok {
		return false
	}
	return pusher.Push(sample)
}

// FailSource reports a client-side geolocation failure (permission denied,
// fix timeout) into the tracking state machine.
func (m *SessionManager) FailSource(err error) {
	if p, ok := m.source.(*PushSource); ok {
		p.Fail(err)
	}
}

// UpdateSteps merges a pedometer count into the active session.
func (m *SessionManager) UpdateSteps(count int) {
	m.mu.Lock()
	if m.session.ID == "" {
		m.mu.Unlock()
		return
	}
	m.session.Steps = count
	m.session.UpdatedAt = time.Now().Unix()
	session := m.session
	m.mu.Unlock()

	m.publishSession(session)
}

// Current returns the locally cached session, if any.
func (m *SessionManager) Current() (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.session.ID != ""
}

// TrackerStats exposes the accumulator snapshot for API responses.
func (m *SessionManager) TrackerStats() Stats {
	return m.acc.Stats()
}

// RetryGPS restarts the tracking cycle after a source failure.
func (m *SessionManager) RetryGPS() error {
	return m.acc.RetryGPS()
}

// StopTracking stops the GPS watch without touching the session record.
func (m *SessionManager) StopTracking() {
	m.acc.StopTracking()
}

// handleStats merges accumulator output into local session state and syncs
// it to the store on a throttle. Sample-level errors never propagate past
// here; they ride along in the stats payload for the client to render.
func (m *SessionManager) handleStats(stats Stats) {
	m.mu.Lock()
	if m.session.ID == "" || m.session.DataSource != models.DataSourceGPS {
		m.mu.Unlock()
		return
	}
	m.session.DistanceKm = stats.TotalDistanceKm
	m.session.AvgSpeedKmh = stats.AvgSpeedKmh
	m.session.MaxSpeedKmh = stats.MaxSpeedKmh
	m.session.AvgPaceMinKm = paceMinPerKm(stats.AvgSpeedKmh)
	m.session.RoutePoints = stats.RoutePoints
	m.session.UpdatedAt = time.Now().Unix()
	session := m.session

	shouldSync := time.Since(m.lastSync) >= syncInterval
	if shouldSync {
		m.lastSync = time.Now()
	}
	m.mu.Unlock()

	if shouldSync {
		// Fire-and-forget background sync; last write wins at the store.
		go func(s models.Session) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.store.SyncSessionStats(ctx, &s); err != nil {
				log.Printf("⚠️  Background session sync failed for %s: %v", s.ID, err)
			}
		}(session)
	}

	if m.publish != nil {
		m.publish(m.userID, map[string]interface{}{
			"type": "tracker_update",
			"data": map[string]interface{}{
				"session": session,
				"stats":   stats,
			},
		})
	}
}

func (m *SessionManager) publishSession(session models.Session) {
	if m.publish == nil {
		return
	}
	m.publish(m.userID, map[string]interface{}{
		"type": "session_update",
		"data": session,
	})
}

// startTickerLocked begins the 1 Hz presentational duration tick. Callers
// hold the lock.
func (m *SessionManager) startTickerLocked() {
	stop := make(chan struct{})
	m.stopTick = stop
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.tick()
			}
		}
	}()
}

func (m *SessionManager) stopTickerLocked() {
	if m.stopTick != nil {
		close(m.stopTick)
		m.stopTick = nil
	}
}

func (m *SessionManager) tick() {
	m.mu.Lock()
	if m.session.ID == "" {
		m.mu.Unlock()
		return
	}
	m.session.DurationSeconds = m.session.ElapsedSeconds()
	session := m.session
	m.mu.Unlock()

	m.publishSession(session)
}

// paceMinPerKm converts an average speed to minutes per kilometer; pace is 0
// when speed is 0.
func paceMinPerKm(speedKmh float64) float64 {
	if speedKmh <= 0 {
		return 0
	}
	return 60 / speedKmh
}
