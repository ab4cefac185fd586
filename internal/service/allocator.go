package service

import (
	"context"

	"github.com/devclip/clipsync/internal/domain"
)

// maxAllocateAttempts caps collision retries. With 900k codes and a 24h TTL
// the space never fills up in practice, but the loop must still terminate.
const maxAllocateAttempts = 100

// CodeAllocator hands out 6-digit codes that are unused among live sessions
// at the instant of generation.
type CodeAllocator struct {
	store domain.SessionStore
}

func NewCodeAllocator(store domain.SessionStore) *CodeAllocator {
	return &CodeAllocator{store: store}
}

func (a *CodeAllocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		code, err := domain.GenerateCode()
		if err != nil {
			return "", err
		}

		taken, err := a.store.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}

	return "", domain.ErrCodeSpaceExhausted
}
