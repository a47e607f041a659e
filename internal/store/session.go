package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/WarfarinBot/internal/models"
)

// SessionStore holds the active dialogue session of each user.
//
// Get returns (nil, nil) when the user has no session. Restart discards any existing session and
// stores a fresh one positioned at the first question.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*models.Session, error)
	Put(ctx context.Context, session models.Session) error
	Delete(ctx context.Context, userID string) error
	Restart(ctx context.Context, userID string, flow models.FlowType, now time.Time) (models.Session, error)
}

// InMemorySessionStore keeps sessions in a process-local map. Sessions never expire: an
// abandoned session stays until the user restarts or the process exits.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// Compile-time check that InMemorySessionStore implements SessionStore.
var _ SessionStore = (*InMemorySessionStore)(nil)

// NewInMemorySessionStore creates an empty session store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]models.Session)}
}

func (s *InMemorySessionStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *InMemorySessionStore) Put(ctx context.Context, session models.Session) error {
	if session.UserID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserID] = session
	return nil
}

func (s *InMemorySessionStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func (s *InMemorySessionStore) Restart(ctx context.Context, userID string, flow models.FlowType, now time.Time) (models.Session, error) {
	if userID == "" {
		return models.Session{}, models.ErrEmptyUserID
	}
	sess := models.NewSession(userID, flow, now)

	s.mu.Lock()
	_, replaced := s.sessions[userID]
	s.sessions[userID] = sess
	s.mu.Unlock()

	if replaced {
		slog.Debug("InMemorySessionStore discarded previous session", "userID", userID)
	}
	return sess, nil
}

// Len returns the number of active sessions.
func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
