// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package cursorstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(zaptest.NewLogger(t), DefaultConfig())
	ctx := context.Background()
	require.NoError(t, store.Start(ctx))
	defer store.Close()

	_, ok, err := store.Get(ctx, GroupKey(1))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, GroupKey(1), 42))
	require.NoError(t, store.Set(ctx, GroupKey(2), 7))

	ts, ok, err := store.Get(ctx, GroupKey(1))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), ts)

	require.NoError(t, store.Set(ctx, GroupKey(1), 43))
	ts, _, _ = store.Get(ctx, GroupKey(1))
	assert.Equal(t, int64(43), ts)

	require.NoError(t, store.Delete(ctx, GroupKey(1)))
	_, ok, _ = store.Get(ctx, GroupKey(1))
	assert.False(t, ok)

	ts, ok, _ = store.Get(ctx, GroupKey(2))
	assert.True(t, ok)
	assert.Equal(t, int64(7), ts)
}

func TestMemoryStoreTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = 20 * time.Millisecond
	store := NewMemoryStore(zaptest.NewLogger(t), cfg)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", 1))
	_, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok, _ := store.Get(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestNew(t *testing.T) {
	logger := zaptest.NewLogger(t)

	store, err := New(logger, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = New(logger, Config{Type: "redis", RedisName: "default"}, nil)
	assert.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	store, err = New(logger, Config{Type: "redis", RedisName: "default"}, client)
	require.NoError(t, err)
	rs, ok := store.(*RedisStore)
	require.True(t, ok)
	assert.Equal(t, "vk:longpoll:cursor:group:5", rs.key(GroupKey(5)))

	_, err = New(logger, Config{Type: "etcd"}, nil)
	assert.Error(t, err)
}

func TestRedisStoreStartFailsWithoutServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	store, err := NewRedisStore(zaptest.NewLogger(t), DefaultConfig(), client)
	require.NoError(t, err)
	assert.Error(t, store.Start(context.Background()))
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	mr, client := newMiniRedis(t)
	store, err := NewRedisStore(zaptest.NewLogger(t), DefaultConfig(), client)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Start(ctx))
	defer store.Close()

	_, ok, err := store.Get(ctx, GroupKey(1))
	require.NoError(t, err)
	assert.False(t, ok, "missing key is not an error")

	require.NoError(t, store.Set(ctx, GroupKey(1), 42))
	raw, err := mr.Get("vk:longpoll:cursor:group:1")
	require.NoError(t, err)
	assert.Equal(t, "42", raw)
	assert.Zero(t, mr.TTL("vk:longpoll:cursor:group:1"))

	ts, ok, err := store.Get(ctx, GroupKey(1))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), ts)

	require.NoError(t, store.Delete(ctx, GroupKey(1)))
	assert.False(t, mr.Exists("vk:longpoll:cursor:group:1"))
	_, ok, err = store.Get(ctx, GroupKey(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreTTL(t *testing.T) {
	mr, client := newMiniRedis(t)
	cfg := DefaultConfig()
	cfg.KeyPrefix = "test"
	cfg.TTL = time.Hour
	store, err := NewRedisStore(zaptest.NewLogger(t), cfg, client)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "a", 5))
	assert.Equal(t, time.Hour, mr.TTL("test:a"))

	mr.FastForward(2 * time.Hour)
	_, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreGetRejectsGarbage(t *testing.T) {
	mr, client := newMiniRedis(t)
	store, err := NewRedisStore(zaptest.NewLogger(t), DefaultConfig(), client)
	require.NoError(t, err)

	require.NoError(t, mr.Set("vk:longpoll:cursor:group:3", "not a number"))
	_, _, err = store.Get(context.Background(), GroupKey(3))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "empty type", cfg: Config{}},
		{name: "redis", cfg: Config{Type: "redis", RedisName: "default"}},
		{name: "redis without name", cfg: Config{Type: "redis"}, wantErr: true},
		{name: "unknown type", cfg: Config{Type: "file"}, wantErr: true},
		{name: "negative ttl", cfg: Config{Type: "memory", TTL: -time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
