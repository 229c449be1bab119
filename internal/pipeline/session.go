package pipeline

import (
	"sync"
	"time"

	"github.com/xiao901202/EdgeMeet/internal/transcript"
)

// Session tracks the in-flight state of one live stream: the next segment
// index, segments transcribed but not yet batch-summarized, and the chunk
// files received so far. Callers serialize access through mu so concurrent
// chunk uploads for the same stream cannot interleave.
type Session struct {
	BaseName   string
	NextIndex  int
	Pending    []transcript.Segment
	ChunkPaths []string
	StartedAt  time.Time

	mu sync.Mutex
}

// Lock acquires the session for one chunk or finalize operation.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// SessionStore tracks open streaming sessions. Implementations must be safe
// for concurrent use.
type SessionStore interface {
	// GetOrCreate returns the session for baseName, creating it on first use.
	GetOrCreate(baseName string) *Session
	// Get returns the session for baseName, or nil when no stream is open.
	Get(baseName string) *Session
	// Delete removes a finished session.
	Delete(baseName string)
	// Count returns the number of open sessions.
	Count() int
}

// memorySessions is the in-process SessionStore.
type memorySessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an in-memory session store.
func NewSessionStore() SessionStore {
	return &memorySessions{
		sessions: make(map[string]*Session),
	}
}

func (m *memorySessions) GetOrCreate(baseName string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[baseName]
	if !ok {
		s = &Session{
			BaseName:  baseName,
			NextIndex: 1,
			StartedAt: time.Now(),
		}
		m.sessions[baseName] = s
	}
	return s
}

func (m *memorySessions) Get(baseName string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[baseName]
}

func (m *memorySessions) Delete(baseName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, baseName)
}

func (m *memorySessions) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
