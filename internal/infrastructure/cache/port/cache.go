package port

import (
	"context"
	"errors"
	"time"
)

// Cache is the key-value contract the chat engine relies on for short-lived
// state: duplicate-send detection and presence last-active timestamps.
// Implementations must be concurrency-safe and honor context cancellation.
//
// Values are plain strings; callers own their encoding.
type Cache interface {
	// Get returns ErrMiss when key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. Zero or negative TTL means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss signals a cache miss, distinct from transport errors.
var ErrMiss = errors.New("cache: miss")
