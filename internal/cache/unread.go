package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// UnreadCounter caches per-user unread notification counts.
type UnreadCounter interface {
	// Get returns the cached count; ok is false on a miss.
	Get(ctx context.Context, userID int64) (count int, ok bool, err error)
	Set(ctx context.Context, userID int64, count int) error
	Invalidate(ctx context.Context, userID int64) error
}

// RedisUnreadCounter stores counters under "notifications:unread:<user>".
// A nil client turns every call into a miss.
type RedisUnreadCounter struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisUnreadCounter builds a counter backed by client.
func NewRedisUnreadCounter(client redis.Cmdable, ttl time.Duration) *RedisUnreadCounter {
	return &RedisUnreadCounter{client: client, ttl: ttl}
}

func unreadKey(userID int64) string {
	return fmt.Sprintf("notifications:unread:%d", userID)
}

// Get implements UnreadCounter.
func (c *RedisUnreadCounter) Get(ctx context.Context, userID int64) (int, bool, error) {
	if c == nil || c.client == nil {
		return 0, false, nil
	}
	raw, err := c.client.Get(ctx, unreadKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt unread counter for user %d: %w", userID, err)
	}
	return count, true, nil
}

// Set implements UnreadCounter.
func (c *RedisUnreadCounter) Set(ctx context.Context, userID int64, count int) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, unreadKey(userID), count, c.ttl).Err()
}

// Invalidate implements UnreadCounter.
func (c *RedisUnreadCounter) Invalidate(ctx context.Context, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, unreadKey(userID)).Err()
}
