package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPrefix(t *testing.T) {
	c := NewWithClient(nil, "esg:")
	assert.Equal(t, "esg:overview:dashboard", c.key("overview:dashboard"))

	bare := NewWithClient(nil, "")
	assert.Equal(t, "overview:dashboard", bare.key("overview:dashboard"))
}

func TestNewUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, WithAddress("127.0.0.1:1"), WithDialTimeout(100*time.Millisecond))
	assert.ErrorContains(t, err, "ping redis at 127.0.0.1:1")
}

// TestRedisRoundTrip runs against a live server named by REDIS_TEST_ADDR.
func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()

	c, err := New(ctx, WithAddress(addr), WithKeyPrefix("esg-test:"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	type payload struct {
		Score int    `json:"score"`
		Label string `json:"label"`
	}

	require.NoError(t, c.Set(ctx, "k", payload{Score: 67, Label: "env"}, time.Minute))

	var got payload
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, payload{Score: 67, Label: "env"}, got)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), redis.Nil)
	assert.NoError(t, c.Delete(ctx))
}
