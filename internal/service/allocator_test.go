package service

import (
	"context"
	"testing"
	"time"

	"github.com/devclip/clipsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore lets tests script Exists answers without a real backend.
type stubStore struct {
	exists func(code string) bool
}

func (s *stubStore) Exists(ctx context.Context, code string) (bool, error) {
	return s.exists(code), nil
}

func (s *stubStore) Get(ctx context.Context, code string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}

func (s *stubStore) Put(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	return nil
}

func TestAllocateReturnsSixDigitCode(t *testing.T) {
	a := NewCodeAllocator(&stubStore{exists: func(string) bool { return false }})

	code, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.True(t, domain.ValidCode(code))
}

func TestAllocateRetriesOnCollision(t *testing.T) {
	calls := 0
	a := NewCodeAllocator(&stubStore{exists: func(string) bool {
		calls++
		return calls <= 3 // first three draws collide
	}})

	code, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.True(t, domain.ValidCode(code))
	assert.Equal(t, 4, calls)
}

func TestAllocateGivesUpWhenSpaceExhausted(t *testing.T) {
	calls := 0
	a := NewCodeAllocator(&stubStore{exists: func(string) bool {
		calls++
		return true
	}})

	_, err := a.Allocate(context.Background())
	require.ErrorIs(t, err, domain.ErrCodeSpaceExhausted)
	assert.Equal(t, maxAllocateAttempts, calls)
}
