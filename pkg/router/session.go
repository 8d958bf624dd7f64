package router

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielmiguelok/scholarpage/pkg/core"
	"github.com/gabrielmiguelok/scholarpage/pkg/transport"
)

// LiveSession binds a websocket connection to its mounted component.
type LiveSession struct {
	ID        string
	Socket    *core.Socket
	Transport transport.Transport
	Component core.Component
	Params    core.Params
	Session   core.Session
	CreatedAt time.Time

	mounted bool
	// FNV-64a of each patch root as last sent to the client
	rootHashes map[string]uint64
	mu         sync.Mutex
}

// Mounted reports whether the component was mounted.
func (s *LiveSession) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

func (s *LiveSession) setMounted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounted = true
}

// resetRoots forgets what the client has, so the next patch carries every
// root.
func (s *LiveSession) resetRoots() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rootHashes = nil
}

// changedRoots returns the roots whose content differs from what was last
// sent and records the new hashes.
func (s *LiveSession) changedRoots(roots map[string]string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := make(map[string]string)
	next := make(map[string]uint64, len(roots))
	for id, html := range roots {
		h := hashRoot(html)
		next[id] = h
		if prev, ok := s.rootHashes[id]; !ok || prev != h {
			changed[id] = html
		}
	}
	s.rootHashes = next
	return changed
}

// hashRoot computes the FNV-64a hash of a root's outer HTML.
func hashRoot(content string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(content))
	return h.Sum64()
}

// SessionManager tracks live sessions.
type SessionManager struct {
	sessions map[string]*LiveSession
	max      int
	mu       sync.RWMutex
}

// NewSessionManager creates a manager allowing max sessions, zero meaning
// unlimited.
func NewSessionManager(max int) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*LiveSession),
		max:      max,
	}
}

// Create registers a session for socket.
func (m *SessionManager) Create(socket *core.Socket, tr transport.Transport, comp core.Component, params core.Params, session core.Session) (*LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.max > 0 && len(m.sessions) >= m.max {
		return nil, ErrAtCapacity
	}
	ls := &LiveSession{
		ID:        uuid.NewString(),
		Socket:    socket,
		Transport: tr,
		Component: comp,
		Params:    params,
		Session:   session,
		CreatedAt: time.Now(),
	}
	m.sessions[ls.ID] = ls
	return ls, nil
}

// Get obtains a session by ID.
func (m *SessionManager) Get(id string) (*LiveSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove drops a session.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Max returns the session cap, zero meaning unlimited.
func (m *SessionManager) Max() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.max
}

// Full reports whether another session would exceed the cap.
func (m *SessionManager) Full() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.max > 0 && len(m.sessions) >= m.max
}
