package chatws

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceKeyTTL = 24 * time.Hour

// RedisPresence keeps per-user connection counts in Redis so multiple
// gateway instances agree on who is online.
type RedisPresence struct {
	client *redis.Client
}

func NewRedisPresence(client *redis.Client) *RedisPresence {
	return &RedisPresence{client: client}
}

func presenceKey(userID int64) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

func (p *RedisPresence) Connect(ctx context.Context, userID int64) (bool, error) {
	key := presenceKey(userID)
	count, err := p.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	// TTL guards against counts leaking when a process dies without
	// running its disconnect path.
	if err := p.client.Expire(ctx, key, presenceKeyTTL).Err(); err != nil {
		return false, err
	}
	return count == 1, nil
}

func (p *RedisPresence) Disconnect(ctx context.Context, userID int64) (bool, error) {
	key := presenceKey(userID)
	count, err := p.client.Decr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count <= 0 {
		if err := p.client.Del(ctx, key).Err(); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (p *RedisPresence) IsOnline(ctx context.Context, userID int64) (bool, error) {
	count, err := p.client.Get(ctx, presenceKey(userID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return count > 0, nil
}
