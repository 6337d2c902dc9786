package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platformbuilds/mirador-sentinel/internal/monitoring"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

type valkeyClusterImpl struct {
	client    *redis.ClusterClient
	logger    logger.Logger
	opTimeout time.Duration
}

func NewValkeyCluster(nodes []string, opts Options, log logger.Logger) (Store, error) {
	opts = opts.withDefaults()
	client := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        nodes,
		Password:     opts.Password,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.OperationTimeout,
		WriteTimeout: opts.OperationTimeout,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 2,
	})

	// Test connection to Valkey cluster
	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey cluster: %w", err)
	}

	return &valkeyClusterImpl{
		client:    client,
		logger:    log,
		opTimeout: opts.OperationTimeout,
	}, nil
}

func (v *valkeyClusterImpl) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, v.opTimeout)
	defer cancel()

	b, err := v.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		monitoring.RecordCacheOperation("get", "miss")
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		monitoring.RecordCacheOperation("get", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("get", "hit")
	return b, nil
}

func (v *valkeyClusterImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encodeValue(key, value)
	if err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return err
	}
	if ttl < 0 {
		ttl = 0
	}

	ctx, cancel := context.WithTimeout(ctx, v.opTimeout)
	defer cancel()
	if err := v.client.Set(ctx, key, data, ttl).Err(); err != nil {
		monitoring.RecordCacheOperation("set", "error")
		return err
	}
	monitoring.RecordCacheOperation("set", "success")
	return nil
}

func (v *valkeyClusterImpl) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, v.opTimeout)
	defer cancel()

	if err := v.client.Del(ctx, key).Err(); err != nil {
		monitoring.RecordCacheOperation("delete", "error")
		return err
	}
	monitoring.RecordCacheOperation("delete", "success")
	return nil
}

// Keys scans every master shard; keys are spread across slots so a single
// SCAN only sees one node's share.
func (v *valkeyClusterImpl) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.opTimeout)
	defer cancel()

	var (
		mu   sync.Mutex
		keys []string
	)
	err := v.client.ForEachMaster(ctx, func(ctx context.Context, shard *redis.Client) error {
		shardKeys, err := scanKeys(ctx, shard, pattern)
		if err != nil {
			return err
		}
		mu.Lock()
		keys = append(keys, shardKeys...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		monitoring.RecordCacheOperation("keys", "error")
		return nil, err
	}
	monitoring.RecordCacheOperation("keys", "success")
	return keys, nil
}

func (v *valkeyClusterImpl) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, v.opTimeout)
	defer cancel()
	return v.client.Ping(ctx).Err()
}
