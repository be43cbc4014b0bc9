package admission

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T, cfg Config) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedis(client, cfg, "test"), mr
}

func TestRedisAdmitsUpToLimit(t *testing.T) {
	r, mr := setupRedis(t, Config{Limit: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		assert.True(t, admit(t, r, "10.0.0.1"))
	}
	assert.False(t, admit(t, r, "10.0.0.1"))

	// Denied requests don't increment the counter
	v, err := mr.Get("test:10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}

func TestRedisWindowReset(t *testing.T) {
	r, mr := setupRedis(t, Config{Limit: 2, Window: time.Second})

	assert.True(t, admit(t, r, "ip"))
	assert.True(t, admit(t, r, "ip"))
	assert.False(t, admit(t, r, "ip"))

	mr.FastForward(1001 * time.Millisecond)

	assert.True(t, admit(t, r, "ip"))
}

func TestRedisKeysAreIndependent(t *testing.T) {
	r, _ := setupRedis(t, Config{Limit: 1, Window: time.Minute})

	assert.True(t, admit(t, r, "a"))
	assert.False(t, admit(t, r, "a"))
	assert.True(t, admit(t, r, "b"))
}

func TestRedisFailsOpen(t *testing.T) {
	r, mr := setupRedis(t, Config{Limit: 1, Window: time.Minute})
	mr.Close()

	ok, err := r.Admit(context.Background(), "ip")
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestRedisKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	r := NewRedis(client, Config{}, "beacon:admission:")
	assert.True(t, admit(t, r, "10.0.0.1"))

	assert.True(t, mr.Exists("beacon:admission:10.0.0.1"))
	assert.False(t, mr.Exists("beacon:admission::10.0.0.1"))
}
