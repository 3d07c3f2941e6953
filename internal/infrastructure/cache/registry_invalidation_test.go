package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// unreachableClient points at a port nothing listens on
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRedisRegistryInvalidator_Handle(t *testing.T) {
	client := unreachableClient()
	defer client.Close()
	inv := NewRedisRegistryInvalidatorWithClient(client, WithInvalidatorChannel("test:invalidate"))

	entries := []tenancy.Invalidation{
		{Kind: tenancy.InvalidationKindSlug, Key: "acme"},
		{Kind: tenancy.InvalidationKindHost, Key: "shop.acme.io"},
	}

	t.Run("applies messages from other instances", func(t *testing.T) {
		payload, err := json.Marshal(InvalidationMessage{Origin: "other", Invalidations: entries})
		require.NoError(t, err)

		var applied []tenancy.Invalidation
		n := inv.handle(string(payload), func(i tenancy.Invalidation) { applied = append(applied, i) })

		assert.Equal(t, 2, n)
		assert.Equal(t, entries, applied)
	})

	t.Run("ignores its own messages", func(t *testing.T) {
		payload, err := json.Marshal(InvalidationMessage{Origin: inv.origin, Invalidations: entries})
		require.NoError(t, err)

		n := inv.handle(string(payload), func(tenancy.Invalidation) { t.Fatal("must not apply own message") })
		assert.Equal(t, 0, n)
	})

	t.Run("skips malformed payloads", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		noisy := NewRedisRegistryInvalidatorWithClient(client, WithInvalidatorLogger(zap.New(core)))

		n := noisy.handle("{not json", func(tenancy.Invalidation) {})
		assert.Equal(t, 0, n)
		assert.Equal(t, 1, logs.FilterMessage("Failed to unmarshal registry invalidation").Len())
	})

	t.Run("survives a panicking callback", func(t *testing.T) {
		payload, err := json.Marshal(InvalidationMessage{Origin: "other", Invalidations: entries})
		require.NoError(t, err)

		assert.NotPanics(t, func() {
			inv.handle(string(payload), func(tenancy.Invalidation) { panic("boom") })
		})
	})
}

func TestRedisRegistryInvalidator_Broadcast(t *testing.T) {
	client := unreachableClient()
	defer client.Close()
	inv := NewRedisRegistryInvalidatorWithClient(client)

	assert.NoError(t, inv.Broadcast(context.Background(), nil))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := inv.Broadcast(ctx, []tenancy.Invalidation{{Kind: tenancy.InvalidationKindSlug, Key: "acme"}})
	assert.ErrorContains(t, err, "failed to publish message")

	assert.NoError(t, inv.Close())
}

func TestRegistryCacheFactory(t *testing.T) {
	redisCfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}
	tenancyCfg := config.TenancyConfig{CacheMaxEntries: 100, CacheTTL: time.Minute}

	t.Run("creates the snapshot cache", func(t *testing.T) {
		c, err := NewRegistryCacheFactory(redisCfg, tenancyCfg).CreateSnapshotCache()
		require.NoError(t, err)
		c.Close()
	})

	t.Run("fan-out disabled", func(t *testing.T) {
		inv, err := NewRegistryCacheFactory(redisCfg, tenancyCfg).CreateInvalidator()
		require.NoError(t, err)
		assert.Nil(t, inv)
		assert.Nil(t, Fanout(inv))
	})

	t.Run("unreachable Redis falls back to local invalidation", func(t *testing.T) {
		cfg := tenancyCfg
		cfg.InvalidationEnabled = true

		inv, err := NewRegistryCacheFactory(redisCfg, cfg).CreateInvalidator()
		require.NoError(t, err)
		assert.Nil(t, inv)
	})

	t.Run("unreachable Redis without fallback is an error", func(t *testing.T) {
		cfg := tenancyCfg
		cfg.InvalidationEnabled = true

		_, err := NewRegistryCacheFactory(redisCfg, cfg, WithLocalOnlyFallback(false)).CreateInvalidator()
		assert.ErrorContains(t, err, "Redis required")
	})
}
