package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

// ErrKeyNotFound is returned (wrapped) by Get when the key does not exist or
// has expired. Any other Get error means the store could not be reached.
var ErrKeyNotFound = errors.New("key not found")

// ErrDegraded is returned (wrapped) by HealthCheck when the store works but
// only in-process, so state is not shared between replicas.
var ErrDegraded = errors.New("store degraded")

// Store is the shared key-value state used for cooldown entries, uptime
// records and status flags. Every mutation is a single atomic command so that
// several sentinel replicas can share one Valkey/Redis deployment without
// in-process locking.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. ttl <= 0 keeps the key until deleted,
	// ttl > 0 is equivalent to SETEX.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Keys returns every key matching a glob pattern such as "uptime:check:*".
	Keys(ctx context.Context, pattern string) ([]string, error)
	HealthCheck(ctx context.Context) error
}

// Options configures the Valkey-backed stores.
type Options struct {
	Nodes    []string
	Password string
	DB       int

	DialTimeout      time.Duration
	OperationTimeout time.Duration
	PoolSize         int

	// RetryInterval controls how often the auto-swap connector retries
	// the real store while running on the in-memory fallback.
	RetryInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.OperationTimeout <= 0 {
		o.OperationTimeout = 2 * time.Second
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 10
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 5 * time.Second
	}
	return o
}

// New picks the store implementation for the configured nodes: one node is a
// single-instance client, several nodes a cluster client. When the store
// cannot be reached at startup the process keeps running on the in-memory
// fallback and swaps once the connection succeeds.
func New(opts Options, log logger.Logger) Store {
	opts = opts.withDefaults()

	dial := func() (Store, error) {
		switch len(opts.Nodes) {
		case 0:
			return nil, fmt.Errorf("no cache nodes configured")
		case 1:
			return NewValkeySingle(opts.Nodes[0], opts, log)
		default:
			return NewValkeyCluster(opts.Nodes, opts, log)
		}
	}

	real, err := dial()
	if err == nil {
		log.Info("Valkey store connected", "nodes", len(opts.Nodes))
		return real
	}
	log.Warn("Valkey store unavailable at startup", "error", err)

	fallback := NewMemoryStore(log)
	if len(opts.Nodes) == 0 {
		return fallback
	}
	return NewAutoSwap(fallback, log, dial, opts.RetryInterval)
}

// encodeValue turns the value accepted by Set into the stored bytes.
func encodeValue(key string, value interface{}) ([]byte, error) {
	switch x := value.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		j, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %s: %w", key, err)
		}
		return j, nil
	}
}
