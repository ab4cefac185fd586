package store

import (
	"context"
	"sync"
	"time"

	"github.com/devclip/clipsync/internal/domain"
)

type memoryEntry struct {
	session   domain.Session
	expiresAt time.Time
}

// MemoryStore is an in-process SessionStore with lazy TTL eviction, used for
// development and tests. State is lost on restart, which matches the
// ephemeral nature of sessions.
type MemoryStore struct {
	sessions map[string]memoryEntry
	mu       sync.RWMutex
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

func (s *MemoryStore) Exists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	entry, ok := s.sessions[code]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.evict(code)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Get(ctx context.Context, code string) (*domain.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[code]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.now().After(entry.expiresAt) {
		s.evict(code)
		return nil, domain.ErrSessionNotFound
	}

	session := entry.session
	return &session, nil
}

func (s *MemoryStore) Put(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	if session == nil || session.Code == "" || session.SecretKey == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked()

	s.sessions[session.Code] = memoryEntry{
		session:   *session,
		expiresAt: s.now().Add(ttl),
	}

	return nil
}

func (s *MemoryStore) evict(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.sessions[code]; ok && s.now().After(entry.expiresAt) {
		delete(s.sessions, code)
	}
}

func (s *MemoryStore) evictExpiredLocked() {
	now := s.now()
	for code, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, code)
		}
	}
}
