package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/PoluyanbIch/QuizBot/internal/service"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session is already cancelled or finished")
)

// MemoryStore keeps sessions and users in process memory. Data is lost on
// restart; it backs the "memory" adapter and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]service.QuizSession
	users    map[int64]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]service.QuizSession),
		users:    make(map[int64]string),
	}
}

func (m *MemoryStore) Active(_ context.Context, userID int64) (*service.QuizSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID && !s.Status.Terminal() {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) Create(_ context.Context, s *service.QuizSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !s.Status.Terminal() {
		for _, existing := range m.sessions {
			if existing.UserID == s.UserID && !existing.Status.Terminal() {
				return service.ErrActiveSessionExists
			}
		}
	}
	if _, ok := m.users[s.UserID]; !ok {
		m.users[s.UserID] = ""
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) Update(_ context.Context, s *service.QuizSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[s.ID]
	if !ok {
		return ErrSessionNotFound
	}
	if stored.Status.Terminal() {
		return ErrSessionClosed
	}
	m.sessions[s.ID] = *s
	return nil
}

// CountActive is the number of sessions not yet cancelled or finished.
func (m *MemoryStore) CountActive(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if !s.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

// History lists a user's sessions, newest first. limit <= 0 means all.
func (m *MemoryStore) History(_ context.Context, userID int64, limit int) ([]service.QuizSession, error) {
	m.mu.Lock()
	var out []service.QuizSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Upsert(_ context.Context, id int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if username != "" || m.users[id] == "" {
		m.users[id] = username
	}
	return nil
}

// Username returns the stored username and whether the user is known.
func (m *MemoryStore) Username(id int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.users[id]
	return name, ok
}
