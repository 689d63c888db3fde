package session

import (
	"sync"

	"github.com/google/uuid"
)

// Manager holds the server-side sessions, keyed by id. Each session gets its
// own collection name so one user's indexing can never bleed into another's
// answers.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	prefix   string
}

func NewManager(collectionPrefix string) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		prefix:   collectionPrefix,
	}
}

// Get returns the session for id, creating one when id is unknown or empty.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if sess, ok := m.sessions[id]; ok {
			return sess
		}
	}

	if id == "" {
		id = uuid.NewString()
	}

	sess := &Session{
		ID:             id,
		CollectionName: m.prefix + "_" + id,
	}
	m.sessions[id] = sess
	return sess
}

// Delete removes a session, e.g. on logout.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
