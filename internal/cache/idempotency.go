package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Response is a completed HTTP response kept for replay.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	// Fingerprint identifies the request body the response answered.
	Fingerprint string `json:"fingerprint"`
}

// Idempotency stores the first completed response per key.
type Idempotency struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotency(client *redis.Client, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Idempotency{client: client, ttl: ttl}
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, bool, error) {
	raw, err := i.client.Get(ctx, "idempotency:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

// Put keeps the first response written for key; later writes are ignored.
func (i *Idempotency) Put(ctx context.Context, key string, r *Response) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return i.client.SetNX(ctx, "idempotency:"+key, raw, i.ttl).Err()
}
