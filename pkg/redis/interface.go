package redis

import (
	"context"
	"time"
)

// ClientInterface is the subset of redis the route and restriction caches
// need. Values are JSON strings with a TTL.
type ClientInterface interface {
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

var _ ClientInterface = (*Client)(nil)
