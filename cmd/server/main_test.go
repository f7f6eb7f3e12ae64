package main

import (
	"context"
	"testing"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/broker"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/stream"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecksProbeRedis(t *testing.T) {
	ctx := context.Background()
	bridge := broker.NewBridge(broker.NewMemory())
	store := stream.NewMemory()

	checks := healthChecks(store, bridge, nil)
	assert.Len(t, checks, 2)
	assert.NotContains(t, checks, "redis")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	checks = healthChecks(store, bridge, rdb)
	require.Contains(t, checks, "redis")
	assert.NoError(t, checks["redis"](ctx))
	assert.NoError(t, checks["store"](ctx))

	mr.Close()
	assert.Error(t, checks["redis"](ctx))
}
