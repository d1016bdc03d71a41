// Package session holds per-user conversation state: the loaded table, its
// dataset registration, and the transcript. A session's table and transcript
// live and die together.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	scerrors "github.com/sheetchat/sheetchat/internal/errors"
	"github.com/sheetchat/sheetchat/internal/render"
	"github.com/sheetchat/sheetchat/internal/table"
)

// Role identifies who produced a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one turn of the conversation.
type Entry struct {
	Role      Role             `json:"role"`
	Text      string           `json:"text,omitempty"`
	Response  *render.Response `json:"response,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Session is one user's upload plus conversation.
type Session struct {
	ID        string
	Table     *table.Table
	DatasetID string
	CreatedAt time.Time

	mu         sync.Mutex
	transcript []Entry
	lastActive time.Time
}

// AppendUser records a user question.
func (s *Session) AppendUser(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = append(s.transcript, Entry{
		Role: RoleUser, Text: text, CreatedAt: time.Now(),
	})
	s.lastActive = time.Now()
}

// AppendResponse records an assistant reply.
func (s *Session) AppendResponse(resp *render.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = append(s.transcript, Entry{
		Role: RoleAssistant, Response: resp, CreatedAt: time.Now(),
	})
	s.lastActive = time.Now()
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.transcript))
	copy(out, s.transcript)

	return out
}

// Touch marks the session as active.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()
}

// Manager tracks live sessions and expires idle ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration

	// onEvict releases external resources (the dataset table) when a
	// session is removed.
	onEvict func(s *Session)

	stop chan struct{}
	once sync.Once
}

// NewManager creates a session manager. A zero ttl disables expiry. onEvict
// may be nil.
func NewManager(ttl time.Duration, onEvict func(s *Session)) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		onEvict:  onEvict,
		stop:     make(chan struct{}),
	}

	if ttl > 0 {
		go m.sweep()
	}

	return m
}

// Create registers a new session around a loaded table.
func (m *Manager) Create(t *table.Table, datasetID string) *Session {
	s := &Session{
		ID:         uuid.New().String(),
		Table:      t,
		DatasetID:  datasetID,
		CreatedAt:  time.Now(),
		lastActive: time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s
}

// Get looks up a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, scerrors.New(scerrors.ErrTypeValidation, "no active session").
			WithSuggestion("Upload a spreadsheet to start a new conversation")
	}

	s.Touch()

	return s, nil
}

// Destroy removes a session and releases its dataset.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok && m.onEvict != nil {
		m.onEvict(s)
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// Close stops the expiry sweeper and destroys all sessions.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stop) })

	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))

	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Destroy(id)
	}
}

func (m *Manager) sweep() {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.expire()
		}
	}
}

func (m *Manager) expire() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.RLock()
	var expired []string

	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastActive.Before(cutoff)
		s.mu.Unlock()

		if idle {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.Destroy(id)
	}
}
