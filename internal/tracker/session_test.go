package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"hotstepper-backend/internal/models"
)

// memStore is the in-memory SessionStore used by these tests.
type memStore struct {
	mu         sync.Mutex
	sessions   map[string]models.Session
	failFinish bool
	failCreate bool
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]models.Session)}
}

func (s *memStore) CreateSession(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errors.New("create failed")
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *memStore) SyncSessionStats(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return errors.New("no such session")
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *memStore) FinishSession(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFinish {
		return errors.New("finish failed")
	}
	if _, ok := s.sessions[sess.ID]; !ok {
		return errors.New("no such session")
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *memStore) ActiveSession(ctx context.Context, userID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Status == models.SessionStatusActive {
			out := sess
			return &out, nil
		}
	}
	return nil, nil
}

func (s *memStore) get(id string) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func newTestManager(store *memStore) (*SessionManager, *PushSource) {
	source := NewPushSource()
	return NewSessionManager("user-1", store, source, nil), source
}

func TestStartCreatesActiveSession(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(store)
	defer m.End(context.Background())

	session, err := m.Start(context.Background(), models.DataSourceGPS)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if session.Status != models.SessionStatusActive {
		t.Errorf("Status = %q, want active", session.Status)
	}

	stored, ok := store.get(session.ID)
	if !ok {
		t.Fatal("session not persisted")
	}
	if stored.UserID != "user-1" || stored.DataSource != models.DataSourceGPS {
		t.Errorf("stored session = %+v", stored)
	}
}

func TestDoubleStartRefused(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(store)
	defer m.End(context.Background())

	if _, err := m.Start(context.Background(), models.DataSourceGPS); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := m.Start(context.Background(), models.DataSourceGPS); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second Start err = %v, want ErrSessionActive", err)
	}
}

func TestStartPersistFailure(t *testing.T) {
	store := newMemStore()
	store.failCreate = true
	m, _ := newTestManager(store)

	if _, err := m.Start(context.Background(), models.DataSourceGPS); err == nil {
		t.Fatal("expected create error")
	}
	if _, active := m.Current(); active {
		t.Error("failed start left a local session behind")
	}
}

func TestEndWithoutSessionIsNoOp(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(store)

	snapshot, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if snapshot != nil {
		t.Errorf("snapshot = %+v, want nil", snapshot)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(store)

	session, err := m.Start(context.Background(), models.DataSourceGPS)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	samples := walkSamples(10, 5)
	for _, s := range samples {
		if !m.Feed(s) {
			t.Fatal("Feed dropped a sample while tracking")
		}
	}

	snapshot, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if snapshot == nil {
		t.Fatal("expected a snapshot")
	}
	if snapshot.SessionID != session.ID {
		t.Errorf("SessionID = %q, want %q", snapshot.SessionID, session.ID)
	}
	if snapshot.DistanceKm <= 0 {
		t.Errorf("DistanceKm = %v, want > 0", snapshot.DistanceKm)
	}
	if len(snapshot.RoutePoints) != len(samples) {
		t.Errorf("RoutePoints = %d, want %d", len(snapshot.RoutePoints), len(samples))
	}
	if want := int(snapshot.DistanceKm * stepsPerKm); snapshot.Steps != want {
		t.Errorf("Steps = %d, want estimate %d", snapshot.Steps, want)
	}

	stored, ok := store.get(session.ID)
	if !ok {
		t.Fatal("session missing after end")
	}
	if stored.Status != models.SessionStatusCompleted {
		t.Errorf("stored Status = %q, want completed", stored.Status)
	}
	if stored.EndedAt == nil {
		t.Error("stored EndedAt is nil")
	}

	if _, active := m.Current(); active {
		t.Error("local session not reset after end")
	}
}

func TestEndKeepsLocalStateOnPersistFailure(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(store)

	session, err := m.Start(context.Background(), models.DataSourceGPS)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	store.mu.Lock()
	store.failFinish = true
	store.mu.Unlock()

	snapshot, err := m.End(context.Background())
	if err == nil {
		t.Fatal("expected finish error")
	}
	if snapshot != nil {
		t.Errorf("snapshot = %+v, want nil on persist failure", snapshot)
	}

	current, active := m.Current()
	if !active || current.ID != session.ID {
		t.Error("local session reset despite persist failure")
	}

	// Recovery: the store comes back and a second End succeeds.
	store.mu.Lock()
	store.failFinish = false
	store.mu.Unlock()

	snapshot, err = m.End(context.Background())
	if err != nil {
		t.Fatalf("second End: %v", err)
	}
	if snapshot == nil || snapshot.SessionID != session.ID {
		t.Errorf("second End snapshot = %+v", snapshot)
	}
}

func TestPedometerStepsNotOverwritten(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(store)

	if _, err := m.Start(context.Background(), models.DataSourceGPS); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, s := range walkSamples(5, 5) {
		m.Feed(s)
	}
	m.UpdateSteps(123)

	snapshot, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if snapshot.Steps != 123 {
		t.Errorf("Steps = %d, want pedometer count 123", snapshot.Steps)
	}
}

func TestFetchActiveRehydrates(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(store)

	session, err := m.Start(context.Background(), models.DataSourceGPS)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Fresh manager simulating an app reload.
	m2, _ := newTestManager(store)
	restored, err := m2.FetchActive(context.Background())
	if err != nil {
		t.Fatalf("FetchActive: %v", err)
	}
	if restored == nil || restored.ID != session.ID {
		t.Fatalf("restored = %+v, want session %s", restored, session.ID)
	}

	current, active := m2.Current()
	if !active || current.ID != session.ID {
		t.Error("rehydrated session not cached locally")
	}

	// GPS watching does not resume on rehydrate; samples are dropped until
	// the client restarts tracking.
	if m2.Feed(walkSamples(1, 5)[0]) {
		t.Error("Feed delivered without an active watch")
	}

	if _, err := m2.End(context.Background()); err != nil {
		t.Fatalf("End after rehydrate: %v", err)
	}
}

func TestFeedWithoutWatch(t *testing.T) {
	store := newMemStore()
	m, _ := newTestManager(store)

	if m.Feed(walkSamples(1, 5)[0]) {
		t.Error("Feed should report a drop when no watch is active")
	}
}
