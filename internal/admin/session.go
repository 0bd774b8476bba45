package admin

import (
	"sync"
	"time"

	"github.com/Davincible/gemini-gateway/internal/idutil"
)

// SessionTTL is a session's lifetime from creation, per spec.md §3.
const SessionTTL = time.Hour

type session struct {
	expiresAt time.Time
}

// SessionStore holds admin-surface session tokens in process memory.
// Readers and writers may run concurrently; expired entries are purged
// opportunistically on validation.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]session
}

// NewSessionStore returns an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]session)}
}

// Create issues a fresh 256-bit random hex session token.
func (s *SessionStore) Create() string {
	token := idutil.RandomHex(32)

	s.mu.Lock()
	s.sessions[token] = session{expiresAt: time.Now().Add(SessionTTL)}
	s.mu.Unlock()

	return token
}

// Validate reports whether token refers to an unexpired session. An
// expired token is evicted as a side effect.
func (s *SessionStore) Validate(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return false
	}

	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return false
	}

	return true
}

// ClearAll invalidates every session, per spec.md's "password change
// invalidates all sessions" invariant.
func (s *SessionStore) ClearAll() {
	s.mu.Lock()
	s.sessions = make(map[string]session)
	s.mu.Unlock()
}
