package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only if it still holds our token, so an expired
// lock taken over by another holder is left alone.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker is a best-effort mutual exclusion lock shared by every process
// talking to the same redis.
type Locker struct {
	client *redis.Client
	poll   time.Duration
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client, poll: 100 * time.Millisecond}
}

// Lock blocks until key is acquired or ctx ends. The lock expires after ttl
// even if unlock is never called.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
					log.Printf("cache: release %s: %v", key, err)
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}
