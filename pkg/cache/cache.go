// Package cache stores server responses between plcpack runs.
//
// Package adapters cache search pages and resolved versions under keys
// built with [Key]. The backend is chosen by the user configuration:
//
//   - file: one JSON file per entry below the HTTP cache directory (default)
//   - redis: a shared Redis instance, for build agents that share a cache
//   - none: [NullCache], nothing is stored
//
// Artifacts are not stored here; they live in the artifact store.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	// Get returns the value stored under key. A missing or expired entry
	// is reported as a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// Backend names accepted by [Open].
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config selects and configures a backend.
type Config struct {
	Backend   string // file (default), redis or none
	Dir       string // file backend directory
	RedisAddr string // redis backend address, host:port
	RedisDB   int
}

// Open creates the backend described by cfg.
func Open(ctx context.Context, cfg Config) (Cache, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendFile:
		return NewFileCache(cfg.Dir)
	case BackendRedis:
		return NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisDB)
	case BackendNone:
		return NewNullCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (available: file, redis, none)", cfg.Backend)
	}
}
