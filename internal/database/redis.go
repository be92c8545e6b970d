package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/abdallahabusidu/coach-app-be-sub001/pkg/logger"
)

// ConnectRedis opens the client used by the presence registry. Callers own
// the returned client and close it on shutdown.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse redis url: %v", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("unable to ping redis: %v", err)
	}

	logger.Info().Msg("Connected to Redis")
	return client, nil
}
