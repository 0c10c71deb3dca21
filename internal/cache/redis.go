package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to redis and verifies the connection, retrying a few
// times while the server comes up.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	const (
		maxRetries = 5
		retryDelay = 2 * time.Second
	)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		select {
		case <-ctx.Done():
			client.Close()
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	client.Close()
	return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
}
