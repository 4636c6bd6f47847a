// Package session implements the demo session store spec.md §1 names as an
// out-of-scope collaborator: a keyed map with TTL and periodic GC (the
// SessionStore path of the two overlapping forms noted in spec.md's Design
// Notes §9 — the sliding-TTL SessionManager was not carried forward; see
// SPEC_FULL.md §12). Session IDs use google/uuid, grounded on its presence
// in nabbar-golib's go.mod within the reference corpus.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session holds whatever a CGI script or handler stashed against an ID.
type Session struct {
	ID        string
	Values    map[string]string
	expiresAt time.Time
}

// Store is a concurrency-safe TTL map: it guards its map with a mutex.
// Within this server it is called only from the single-threaded event
// loop (session resolution, the CGI X-Session-Set bridge, and GC).
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session
}

// New builds a Store whose entries expire ttl after their last touch.
func New(ttl time.Duration) *Store {
	return &Store{ttl: ttl, sessions: make(map[string]*Session)}
}

// Create mints a fresh session with a random uuid and no values.
func (s *Store) Create() *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		Values:    make(map[string]string),
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session for id, touching its expiry, or nil if it does
// not exist or has already expired.
func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, id)
		return nil
	}
	sess.expiresAt = time.Now().Add(s.ttl)
	return sess
}

// Set stores key=value in the session named id, creating it if absent.
// This is the hook the CGI response bridge (X-Session-Set, see
// SPEC_FULL.md §11) calls into.
func (s *Store) Set(id, key, value string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id, Values: make(map[string]string)}
		s.sessions[id] = sess
	}
	sess.Values[key] = value
	sess.expiresAt = time.Now().Add(s.ttl)
	return sess
}

// GC removes every session past its expiry. The event loop calls this
// opportunistically from its timeout sweep, the same pattern it uses for
// connection and CGI timeout sweeps.
func (s *Store) GC() int {
	now := time.Now()
	removed := 0
	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

// Count reports the number of stored (not necessarily unexpired) sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
