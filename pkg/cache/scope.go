package cache

import (
	"context"
	"strings"
	"time"

	"github.com/matzehuels/plcpack/pkg/observability"
)

// Scoped prefixes every key of an inner cache so that several package
// servers can share one backend without seeing each other's entries. It
// reports hits, misses and writes to the observability cache hooks, using
// the key's kind as key type.
type Scoped struct {
	inner  Cache
	prefix string
}

// NewScoped returns a view of inner whose keys are prefixed with prefix.
// A nil inner cache behaves like [NullCache].
func NewScoped(inner Cache, prefix string) *Scoped {
	if inner == nil {
		inner = NewNullCache()
	}
	return &Scoped{inner: inner, prefix: prefix}
}

// Prefix returns the scope's key prefix.
func (s *Scoped) Prefix() string { return s.prefix }

func (s *Scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := s.inner.Get(ctx, s.prefix+key)
	if err == nil {
		if ok {
			observability.Cache().OnCacheHit(ctx, kind(key))
		} else {
			observability.Cache().OnCacheMiss(ctx, kind(key))
		}
	}
	return data, ok, err
}

func (s *Scoped) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := s.inner.Set(ctx, s.prefix+key, data, ttl); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, kind(key), len(data))
	return nil
}

func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

// Close does nothing; the inner cache is owned by whoever opened it.
func (s *Scoped) Close() error { return nil }

func kind(key string) string {
	k, _, _ := strings.Cut(key, ":")
	return k
}

var _ Cache = (*Scoped)(nil)
