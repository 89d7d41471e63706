package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/richxcame/truckroute/pkg/redis"
	"github.com/richxcame/truckroute/pkg/tracing"
)

// ErrMiss is returned by Get when the key is absent or the manager has no backend.
var ErrMiss = errors.New("cache miss")

const tracerName = "cache"

// Manager handles caching operations with JSON serialization. A nil backend
// turns every read into a miss and every write into a no-op.
type Manager struct {
	redis  redisclient.ClientInterface
	prefix string
}

// NewManager creates a new cache manager
func NewManager(redis redisclient.ClientInterface, prefix string) *Manager {
	return &Manager{redis: redis, prefix: prefix}
}

// Enabled reports whether a backend is configured.
func (m *Manager) Enabled() bool {
	return m != nil && m.redis != nil
}

// Get retrieves a cached value and unmarshals it into result
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	if !m.Enabled() {
		return ErrMiss
	}

	var data string
	err := tracing.TraceRedisCommand(ctx, tracerName, "GET", m.prefix+key, func() error {
		var getErr error
		data, getErr = m.redis.GetString(ctx, m.prefix+key)
		return getErr
	})
	if redisclient.IsNil(err) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(data), result); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !m.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return tracing.TraceRedisCommand(ctx, tracerName, "SET", m.prefix+key, func() error {
		return m.redis.SetWithExpiration(ctx, m.prefix+key, string(data), ttl)
	})
}

// Delete removes keys from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if !m.Enabled() || len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = m.prefix + k
	}
	return m.redis.Delete(ctx, prefixed...)
}

// CacheKeys provides standardized cache key generation
type CacheKeys struct{}

// Keys is the shared key builder.
var Keys = CacheKeys{}

// Route keys a computed route by a digest of the request that produced it.
func (k CacheKeys) Route(fingerprint string) string {
	return "route:" + Digest(fingerprint)
}

// Restrictions keys the restriction set of an activated route.
func (k CacheKeys) Restrictions(routeID string) string {
	return "restrictions:" + routeID
}

// Digest returns a hex sha256 of s, used to keep keys short.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
