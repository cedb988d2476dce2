// internal/game/session_store.go
package game

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxSessions caps the number of live sessions held in memory.
const DefaultMaxSessions = 100

// DestroyNotifier receives the session-destroyed notification after a
// lifecycle timer fires or an explicit teardown. The transport layer
// implements it to tell connected seats and close their connections.
type DestroyNotifier interface {
	OnDestroyed(sessionID uuid.UUID)
}

// SessionStore is the directory of live sessions, keyed by id and
// searchable by team code or seat identity. It enforces the
// concurrent-session cap and routes destroy notifications. Instantiate
// one per server (or per test); there is no global registry.
type SessionStore struct {
	mu          sync.Mutex
	sessions    map[uuid.UUID]*Session
	maxSessions int
	notifier    DestroyNotifier
}

// NewSessionStore returns an empty directory with the given capacity;
// cap <= 0 means DefaultMaxSessions. The notifier may be nil.
func NewSessionStore(maxSessions int, notifier DestroyNotifier) *SessionStore {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &SessionStore{
		sessions:    make(map[uuid.UUID]*Session),
		maxSessions: maxSessions,
		notifier:    notifier,
	}
}

// Create builds a new session under managerName and registers it.
func (st *SessionStore) Create(managerName string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.sessions) >= st.maxSessions {
		return nil, ErrCapacityExceeded
	}
	s := NewSession(managerName)
	s.OnDestroyed = st.handleDestroyed
	st.sessions[s.ID] = s
	return s, nil
}

// Add registers an externally built session (an imported save),
// subject to the same capacity cap.
func (st *SessionStore) Add(s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.sessions) >= st.maxSessions {
		return ErrCapacityExceeded
	}
	s.OnDestroyed = st.handleDestroyed
	st.sessions[s.ID] = s
	return nil
}

// FindByID looks up a session by its id.
func (st *SessionStore) FindByID(id uuid.UUID) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// FindByTeamCode returns the session owning either invite code.
func (st *SessionStore) FindByTeamCode(teamCode string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, s := range st.sessions {
		if s.TeamCodes[0] == teamCode || s.TeamCodes[1] == teamCode {
			return s, true
		}
	}
	return nil, false
}

// FindBySeatIdentity returns the session holding a seat bound to the
// given connection identity.
func (st *SessionStore) FindBySeatIdentity(identity string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, s := range st.sessions {
		s.Mu.Lock()
		idx := s.SeatIndexByIdentity(identity)
		s.Mu.Unlock()
		if idx != -1 {
			return s, true
		}
	}
	return nil, false
}

// Len reports the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Destroy deregisters a session and cancels its timers. Idempotent:
// destroying an unknown or already-destroyed id is a no-op.
func (st *SessionStore) Destroy(id uuid.UUID) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	if ok {
		// Detach before Destroy so the callback doesn't loop back here.
		s.Mu.Lock()
		s.OnDestroyed = nil
		s.Mu.Unlock()
		s.Destroy()
	}
}

// handleDestroyed is installed as every session's OnDestroyed hook: it
// forwards the event to the injected notifier, then deregisters.
func (st *SessionStore) handleDestroyed(id uuid.UUID) {
	if st.notifier != nil {
		st.notifier.OnDestroyed(id)
	}
	st.Destroy(id)
}
