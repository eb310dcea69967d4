package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayurkart/storefront-backend/pkg/config"
)

func TestClaimLoadSaveRelease(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newMemCommands()}
	key := client.Key("idempotency", "user-1", "abc")

	claimed, err := client.Claim(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = client.Claim(ctx, key, "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must lose")

	require.NoError(t, client.Save(ctx, key, "done", time.Hour))
	value, found, err := client.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "done", value)

	require.NoError(t, client.Release(ctx, key))
	_, found, err = client.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, found, "missing keys are not errors")
}

func TestUninitializedClient(t *testing.T) {
	ctx := context.Background()
	var client *Client
	assert.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	_, _, err := client.Load(ctx, "k")
	assert.ErrorIs(t, err, errNotInitialized)
	_, err = client.Claim(ctx, "k", "v", time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestKeySkipsBlankParts(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "sf:idempotency:scope:id", client.Key("idempotency", "scope", "id"))
	assert.Equal(t, "sf:idempotency:id", client.Key("idempotency", " ", "id"))
	assert.Equal(t, "sf", client.Key())
}

func TestOptions(t *testing.T) {
	_, err := options(config.RedisConfig{})
	require.Error(t, err)

	opts, err := options(config.RedisConfig{URL: "redis://localhost:6379/2", DB: 5, PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB, "url database wins")
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = options(config.RedisConfig{Address: "cache:6379", DB: 3, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, "pw", opts.Password)
}

type memCommands struct {
	data map[string]string
}

func newMemCommands() *memCommands {
	return &memCommands{data: map[string]string{}}
}

func (m *memCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *memCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *memCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
