package call

import (
	"sync"
	"time"
)

// Registry is the process-lifetime store of in-flight call sessions. A
// session exists in the registry exactly while its call has not terminated;
// Remove is the only destruction path. The registry mutex guards only the
// map — per-call serialization is the session's own lock, so one call's slow
// capability I/O never blocks callbacks for other calls.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for callSID, creating it with a scenario
// from scenarioFn if absent. scenarioFn is only invoked when a new session
// is actually created.
func (r *Registry) GetOrCreate(callSID string, scenarioFn func() string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[callSID]; ok {
		return s
	}
	s := &Session{
		CallSID:   callSID,
		Scenario:  scenarioFn(),
		StartedAt: time.Now(),
	}
	r.sessions[callSID] = s
	return s
}

// Get returns the session for callSID. Absence is a normal, silent case:
// the call already concluded or never existed.
func (r *Registry) Get(callSID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callSID]
	return s, ok
}

// Remove deletes the session for callSID. Removing an absent SID is a no-op.
func (r *Registry) Remove(callSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callSID)
}

// Len returns the number of in-flight sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
