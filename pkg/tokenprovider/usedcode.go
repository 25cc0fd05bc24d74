package tokenprovider

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// UsedCodeStore remembers codes that were already accepted.
// MarkUsed reports true only for the first call with a given key within ttl.
type UsedCodeStore interface {
	MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type MemoryUsedCodeStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

type MemoryOption func(*MemoryUsedCodeStore)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryUsedCodeStore) {
		s.now = now
	}
}

func NewMemoryUsedCodeStore(opts ...MemoryOption) *MemoryUsedCodeStore {
	s := &MemoryUsedCodeStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryUsedCodeStore) MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, expires := range s.entries {
		if !expires.After(now) {
			delete(s.entries, k)
		}
	}
	if _, exists := s.entries[key]; exists {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

// RedisUsedCodeStore shares used codes between instances with SET NX EX.
type RedisUsedCodeStore struct {
	client redis.UniversalClient
	prefix string
}

const DefaultRedisPrefix = "idp:used-code:"

func NewRedisUsedCodeStore(client redis.UniversalClient, prefix string) *RedisUsedCodeStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisUsedCodeStore{client: client, prefix: prefix}
}

func (s *RedisUsedCodeStore) MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, 1, ttl).Result()
}
