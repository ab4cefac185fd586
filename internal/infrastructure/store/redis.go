package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/devclip/clipsync/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "device:"

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redis and verifies the connection with a ping.
func NewRedisStore(addr, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) key(code string) string {
	return keyPrefix + code
}

func (s *RedisStore) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(code)).Result()
	if err != nil {
		return false, fmt.Errorf("store: exists %s: %w", code, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Get(ctx context.Context, code string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", code, err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("store: unmarshal %s: %w", code, err)
	}

	return &session, nil
}

// Put upserts the session and resets its TTL. Expiry is handled entirely by
// redis; there is no explicit delete path.
func (s *RedisStore) Put(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	if session == nil || session.Code == "" || session.SecretKey == "" {
		return domain.ErrInvalidInput
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", session.Code, err)
	}

	if err := s.client.Set(ctx, s.key(session.Code), data, ttl).Err(); err != nil {
		return fmt.Errorf("store: put %s: %w", session.Code, err)
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
