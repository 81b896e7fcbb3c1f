package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestReserveIsFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}
	key := client.Key("label-purchase", "abc")

	won, err := client.Reserve(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = client.Reserve(ctx, key, "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	v, found, err := client.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "pending", v)

	require.NoError(t, client.Store(ctx, key, "done", time.Minute))
	v, _, _ = client.Load(ctx, key)
	assert.Equal(t, "done", v)

	require.NoError(t, client.Release(ctx, key))
	_, found, err = client.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, found, "missing keys are reported as not found, not as errors")
}

func TestUnconnectedClient(t *testing.T) {
	client := &Client{}
	_, _, err := client.Load(context.Background(), "k")
	assert.ErrorIs(t, err, errNotConnected)
	assert.ErrorIs(t, client.Ping(context.Background()), errNotConnected)
	assert.NoError(t, client.Close())
}

func TestKey(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "sf:label-purchase:abc", client.Key("label-purchase", " abc "))
	assert.Equal(t, "sf:label-purchase", client.Key("label-purchase", ""))
}

func TestOptions(t *testing.T) {
	_, err := options(config.RedisConfig{})
	require.Error(t, err)

	opts, err := options(config.RedisConfig{Address: "localhost:6379", DB: 2, PoolSize: 4, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = options(config.RedisConfig{URL: "redis://:pw@cache:6380/3", DB: 7, PoolSize: 4})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB, "db from the url wins")
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 4, opts.PoolSize)
}

type fakeCommands struct {
	data map[string]string
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{data: make(map[string]string)}
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
