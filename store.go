package tsgate

import (
	"context"
	"time"
)

// Message is a single pub/sub message received from the store.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription is an active pub/sub subscription. Messages returns a
// channel closed when the subscription ends.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Batch accumulates store commands and executes them as one atomic round
// trip. Used by the heartbeat loop to refresh many client records without
// partially-applied state.
type Batch interface {
	HSet(key string, fields map[string]string)
	SAdd(key string, member string)
	Expire(key string, ttl time.Duration)
	Exec(ctx context.Context) error
}

// Store is the coordination store shared by all workers: a key-value
// store with per-key expiry, set and hash structures and publish/subscribe
// messaging. Implementations must map a missing key or hash field to
// ErrNotFound.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)

	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SCard(ctx context.Context, key string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)

	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	Batch() Batch
}
