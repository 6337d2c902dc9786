package cache

import (
	"context"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

// autoSwapStore wraps a Store implementation and can swap from a fallback
// (the in-memory store) to a real Valkey client once it becomes available.
// It satisfies Store by delegating all calls to the currently active
// implementation.
type autoSwapStore struct {
	mu      sync.RWMutex
	current Store
	swapped bool
	logger  logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewAutoSwap creates an auto-swapping store that starts with fallback and
// keeps trying dial every retryEvery until it succeeds, then swaps.
func NewAutoSwap(fallback Store, log logger.Logger, dial func() (Store, error), retryEvery time.Duration) *autoSwapStore {
	a := &autoSwapStore{
		current: fallback,
		logger:  log,
		stopCh:  make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(retryEvery)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				real, err := dial()
				if err != nil {
					a.logger.Warn("Valkey connection attempt failed; will retry", "error", err)
					continue
				}
				a.mu.Lock()
				a.current = real
				a.swapped = true
				a.mu.Unlock()
				a.logger.Info("Valkey connection established; switched from in-memory to real store")
				return
			}
		}
	}()

	return a
}

// Stop ends the background connector.
func (a *autoSwapStore) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

// Swapped reports whether the real store is in use.
func (a *autoSwapStore) Swapped() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.swapped
}

func (a *autoSwapStore) active() Store {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

func (a *autoSwapStore) Get(ctx context.Context, key string) ([]byte, error) {
	return a.active().Get(ctx, key)
}

func (a *autoSwapStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return a.active().Set(ctx, key, value, ttl)
}

func (a *autoSwapStore) Delete(ctx context.Context, key string) error {
	return a.active().Delete(ctx, key)
}

func (a *autoSwapStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return a.active().Keys(ctx, pattern)
}

func (a *autoSwapStore) HealthCheck(ctx context.Context) error {
	return a.active().HealthCheck(ctx)
}
