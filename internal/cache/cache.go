package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// InvalidateChannel carries event ids whose public views must be rebuilt.
const InvalidateChannel = "cache:invalidate"

// Invalidator drops cached public views of an event.
type Invalidator interface {
	InvalidateEvent(ctx context.Context, eventID int64) error
}

type Nop struct{}

func (Nop) InvalidateEvent(context.Context, int64) error { return nil }

// RedisInvalidator deletes event:{id}:* view keys and announces the change so
// the rendering layer can revalidate its own copies.
type RedisInvalidator struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisInvalidator(client *redis.Client, logger *slog.Logger) *RedisInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisInvalidator{client: client, logger: logger}
}

func EventKeyPattern(eventID int64) string {
	return fmt.Sprintf("event:%d:*", eventID)
}

func (c *RedisInvalidator) InvalidateEvent(ctx context.Context, eventID int64) error {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, EventKeyPattern(eventID), 100).Result()
		if err != nil {
			return fmt.Errorf("scan view keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete view keys: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if err := c.client.Publish(ctx, InvalidateChannel, strconv.FormatInt(eventID, 10)).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	c.logger.Debug("event_cache_invalidated", "event_id", eventID, "keys", deleted)
	return nil
}
