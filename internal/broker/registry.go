package broker

import (
	"sync"

	"github.com/google/uuid"

	"github.com/auditdbio/eventgate/internal/metrics"
)

// Registry is the process-wide table of live sessions, indexed by user id.
// A single lock guards the whole table: bucket churn is cheap at this scale
// (hundreds to low thousands of sessions) and finer granularity buys nothing.
type Registry struct {
	mu       sync.RWMutex
	users    map[string]map[uuid.UUID]*Session
	sessions int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[uuid.UUID]*Session)}
}

// Register inserts the session under its claimed user id and returns the
// session id. A user may hold any number of concurrent sessions.
func (r *Registry) Register(s *Session) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.users[s.UserID]
	if !ok {
		bucket = make(map[uuid.UUID]*Session)
		r.users[s.UserID] = bucket
	}
	bucket[s.ID] = s
	r.sessions++

	metrics.RegistryUsers.Set(float64(len(r.users)))
	metrics.RegistrySessions.Set(float64(r.sessions))
	if !s.Authenticated() {
		metrics.RegistryUnauthenticatedSessions.Inc()
	}
	return s.ID
}

// Unregister removes the session if present. Removing a session twice, or
// one that was never registered, is a silent no-op: the session's own close
// path and an external reaper may race here.
func (r *Registry) Unregister(userID string, sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.users[userID]
	if !ok {
		return
	}
	s, ok := bucket[sessionID]
	if !ok {
		return
	}

	delete(bucket, sessionID)
	if len(bucket) == 0 {
		delete(r.users, userID)
	}
	r.sessions--

	metrics.RegistryUsers.Set(float64(len(r.users)))
	metrics.RegistrySessions.Set(float64(r.sessions))
	if !s.Authenticated() {
		metrics.RegistryUnauthenticatedSessions.Dec()
	}
}

// SessionsFor returns a snapshot of the user's live sessions. Entries may
// close between snapshot and use; delivery to a closed session is a no-op.
func (r *Registry) SessionsFor(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.users[userID]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(bucket))
	for _, s := range bucket {
		out = append(out, s)
	}
	return out
}

// AllSessions returns a snapshot of every live session, for broadcast events.
func (r *Registry) AllSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, r.sessions)
	for _, bucket := range r.users {
		for _, s := range bucket {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the total number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions
}

// CloseAll gracefully closes every session and empties the table, used
// during shutdown. Read loops observe the closed connections and unregister;
// the table is cleared here so late unregisters become no-ops.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	sessions := make([]*Session, 0, r.sessions)
	for userID, bucket := range r.users {
		for _, s := range bucket {
			sessions = append(sessions, s)
		}
		delete(r.users, userID)
	}
	r.sessions = 0
	metrics.RegistryUsers.Set(0)
	metrics.RegistrySessions.Set(0)
	r.mu.Unlock()

	for _, s := range sessions {
		if !s.Authenticated() {
			metrics.RegistryUnauthenticatedSessions.Dec()
		}
		s.CloseGraceful(reason)
	}
}
