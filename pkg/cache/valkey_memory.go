package cache

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-sentinel/internal/monitoring"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

// memoryStore provides an in-memory, process-local fallback that satisfies
// Store when the external Valkey deployment is unavailable. TTLs are honoured
// lazily on read. Data is not shared across replicas and is lost on restart.
type memoryStore struct {
	mu     sync.RWMutex
	m      map[string]memoryEntry
	now    func() time.Time
	logger logger.Logger
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryOption customises NewMemoryStore.
type MemoryOption func(*memoryStore)

// WithClock replaces time.Now; tests use it to move through cooldown windows.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *memoryStore) { s.now = now }
}

func NewMemoryStore(log logger.Logger, opts ...MemoryOption) Store {
	s := &memoryStore{
		m:      make(map[string]memoryEntry),
		now:    time.Now,
		logger: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *memoryStore) live(e memoryEntry, now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok || !s.live(e, s.now()) {
		monitoring.RecordCacheOperation("get", "miss")
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	monitoring.RecordCacheOperation("get", "hit")
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (s *memoryStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := encodeValue(key, value)
	if err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return err
	}
	e := memoryEntry{value: b}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.m[key] = e
	s.mu.Unlock()
	monitoring.RecordCacheOperation("set", "success")
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	monitoring.RecordCacheOperation("delete", "success")
	return nil
}

// Keys matches with path.Match, which covers the *, ? and [...] forms the
// sentinel key patterns use. Expired entries are purged along the way.
func (s *memoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0)
	for k, e := range s.m {
		if !s.live(e, now) {
			delete(s.m, k)
			continue
		}
		ok, err := path.Match(pattern, k)
		if err != nil {
			monitoring.RecordCacheOperation("keys", "error")
			return nil, fmt.Errorf("invalid key pattern %q: %w", pattern, err)
		}
		if ok {
			keys = append(keys, k)
		}
	}
	monitoring.RecordCacheOperation("keys", "success")
	return keys, nil
}

// HealthCheck always reports ErrDegraded: the store serves requests but no
// external Valkey is connected.
func (s *memoryStore) HealthCheck(ctx context.Context) error {
	return fmt.Errorf("%w: in-memory store in use (external Valkey not connected)", ErrDegraded)
}
