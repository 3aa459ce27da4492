package tracker

import "sync"

// Registry owns one SessionManager per user. Managers are created on demand
// with the source mode and publisher chosen once at composition time.
type Registry struct {
	mu         sync.Mutex
	store      SessionStore
	sourceMode string
	publish    func(userID string, data interface{})
	managers   map[string]*SessionManager
}

func NewRegistry(store SessionStore, sourceMode string, publish func(userID string, data interface{})) *Registry {
	return &Registry{
		store:      store,
		sourceMode: sourceMode,
		publish:    publish,
		managers:   make(map[string]*SessionManager),
	}
}

// Manager returns the user's session manager, creating it on first use.
func (r *Registry) Manager(userID string) *SessionManager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.managers[userID]; ok {
		return m
	}
	m := NewSessionManager(userID, r.store, NewSource(r.sourceMode), r.publish)
	r.managers[userID] = m
	return m
}

// ActiveUserIDs lists users with a locally active session, for the coach
// live view.
func (r *Registry) ActiveUserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.managers))
	for id, m := range r.managers {
		if _, ok := m.Current(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
