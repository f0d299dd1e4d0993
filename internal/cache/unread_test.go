package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClientIsAlwaysAMiss(t *testing.T) {
	ctx := context.Background()
	c := NewRedisUnreadCounter(nil, 0)

	require.NoError(t, c.Set(ctx, 7, 3))
	count, ok, err := c.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, count)
	assert.NoError(t, c.Invalidate(ctx, 7))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var c *RedisUnreadCounter
	_, ok, err := c.Get(context.Background(), 1)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(context.Background(), 1))
}

func TestUnreadKey(t *testing.T) {
	assert.Equal(t, "notifications:unread:42", unreadKey(42))
}
