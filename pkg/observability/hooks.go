// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries emit events through the registered hooks; the defaults do
// nothing. Consumers register their own implementations once at startup,
// before any package operation runs:
//
//	func main() {
//	    observability.SetPackageHooks(&myPackageHooks{})
//	    observability.SetHTTPHooks(&myHTTPHooks{})
//	    // ... run application
//	}
//
// Emitting an event:
//
//	observability.Packages().OnDownloadStart(ctx, name, version)
//	// ... transfer ...
//	observability.Packages().OnDownloadComplete(ctx, name, version, size, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// PackageHooks receives events from resolution and artifact downloads.
type PackageHooks interface {
	// OnResolve records a reference resolved by server.
	OnResolve(ctx context.Context, server, pkg, version string)
	// OnResolveMiss records a reference no server resolved. unreachable is
	// true when every server asked failed instead of answering.
	OnResolveMiss(ctx context.Context, pkg string, unreachable bool)

	OnDownloadStart(ctx context.Context, pkg, version string)
	OnDownloadComplete(ctx context.Context, pkg, version string, duration time.Duration, err error)
	// OnDownloadSkipped records a download avoided because the artifact
	// was already cached.
	OnDownloadSkipped(ctx context.Context, pkg, version string)
}

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// NoopPackageHooks is a no-op implementation of PackageHooks.
type NoopPackageHooks struct{}

func (NoopPackageHooks) OnResolve(context.Context, string, string, string) {}
func (NoopPackageHooks) OnResolveMiss(context.Context, string, bool)       {}
func (NoopPackageHooks) OnDownloadStart(context.Context, string, string)   {}
func (NoopPackageHooks) OnDownloadSkipped(context.Context, string, string) {}
func (NoopPackageHooks) OnDownloadComplete(context.Context, string, string, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

var (
	packageHooks PackageHooks = NoopPackageHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	hooksMu      sync.RWMutex
)

// SetPackageHooks registers custom package hooks. Nil is ignored.
func SetPackageHooks(h PackageHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		packageHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Packages returns the registered package hooks.
func Packages() PackageHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return packageHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	packageHooks = NoopPackageHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
