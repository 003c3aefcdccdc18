// Package memory provides the in-memory storage backend.
package memory

import (
	"context"
	"sync"
	"time"

	"nftgate/internal/domain"
	"nftgate/internal/storage"
)

// SessionStore is an in-memory implementation of storage.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionKey]*domain.VerificationSession
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionKey]*domain.VerificationSession),
	}
}

var _ storage.SessionStore = (*SessionStore)(nil)

// Put stores the session, replacing any existing session for the key.
func (s *SessionStore) Put(_ context.Context, sess *domain.VerificationSession) error {
	if sess == nil || sess.UserID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessCopy := *sess
	s.sessions[sess.Key()] = &sessCopy
	return nil
}

// Get retrieves a live session. Returns ErrNotFound if none exists.
func (s *SessionStore) Get(_ context.Context, key domain.SessionKey) (*domain.VerificationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	sessCopy := *sess
	return &sessCopy, nil
}

// Remove atomically checks and removes the session under one lock hold.
func (s *SessionStore) Remove(_ context.Context, key domain.SessionKey) (*domain.VerificationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[key]
	if !exists {
		return nil, storage.ErrNotFound
	}
	delete(s.sessions, key)

	sessCopy := *sess
	return &sessCopy, nil
}

// Expired returns keys of sessions past their deadline.
func (s *SessionStore) Expired(_ context.Context, now time.Time) ([]domain.SessionKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []domain.SessionKey
	for key, sess := range s.sessions {
		if sess.Expired(now) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Count returns the number of live sessions.
func (s *SessionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}
