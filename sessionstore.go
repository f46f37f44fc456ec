package genairadio

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionNotFound is returned when no quiz attempt is stored for a session id
var ErrSessionNotFound = errors.New("quiz session not found")

// SessionStore keeps quiz attempts keyed by browser session id. Each
// listener's attempt lives under its own key; nothing is shared across ids.
type SessionStore interface {
	Load(ctx context.Context, sid string) (*QuizSession, error)
	Save(ctx context.Context, sid string, session *QuizSession) error
	Delete(ctx context.Context, sid string) error
}

// MemorySessionStore holds quiz attempts in process memory. Once capacity is
// reached the oldest saved session is evicted.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*QuizSession
	queue    []string // FIFO of session ids, oldest first
	capacity int
}

// NewMemorySessionStore creates a store. capacity <= 0 means unbounded.
func NewMemorySessionStore(capacity int) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*QuizSession),
		queue:    make([]string, 0),
		capacity: capacity,
	}
}

// Load returns a copy of the stored attempt
func (ms *MemorySessionStore) Load(_ context.Context, sid string) (*QuizSession, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	session, ok := ms.sessions[sid]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.clone(), nil
}

// Save stores a copy of session under sid
func (ms *MemorySessionStore) Save(_ context.Context, sid string, session *QuizSession) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.sessions[sid]; exists {
		ms.removeFromQueue(sid)
	}
	ms.sessions[sid] = session.clone()
	ms.queue = append(ms.queue, sid)

	for ms.capacity > 0 && len(ms.queue) > ms.capacity {
		oldest := ms.queue[0]
		ms.queue = ms.queue[1:]
		delete(ms.sessions, oldest)
		VerboseLog("evicted quiz session %s", oldest)
	}
	return nil
}

// Delete removes the attempt stored under sid
func (ms *MemorySessionStore) Delete(_ context.Context, sid string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.sessions, sid)
	ms.removeFromQueue(sid)
	return nil
}

// Size returns the number of stored attempts
func (ms *MemorySessionStore) Size() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.sessions)
}

func (ms *MemorySessionStore) removeFromQueue(sid string) {
	for i, id := range ms.queue {
		if id == sid {
			ms.queue = append(ms.queue[:i], ms.queue[i+1:]...)
			break
		}
	}
}
