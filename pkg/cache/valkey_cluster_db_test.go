//go:build db

package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Live Valkey cluster tests; VALKEY_CLUSTER_NODES is a comma-separated list.
func TestValkeyCluster_DB(t *testing.T) {
	nodes := os.Getenv("VALKEY_CLUSTER_NODES")
	if nodes == "" {
		t.Skip("VALKEY_CLUSTER_NODES not set; skipping DB test")
	}
	s, err := NewValkeyCluster(strings.Split(nodes, ","), Options{}, logger.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Set(ctx, "sentinel:cluster:"+k, k, 5*time.Second))
	}
	keys, err := s.Keys(ctx, "sentinel:cluster:*")
	require.NoError(t, err)
	assert.Len(t, keys, 4)
}
