package protocol

import (
	"context"
	"fmt"
	"strings"
)

// Server is the capability every catalog back-end implements.
//
// Resolve and GetVersion return (nil, nil) when the server does not know
// the requested library; errors are reserved for transport and payload
// failures. Connected is true once Login (or an anonymous probe) succeeded.
type Server interface {
	// Name is the configured source name, used in logs and sessions.
	Name() string
	// URL is the base address of the server.
	URL() string
	// Connected reports whether the server takes part in federation.
	Connected() bool

	// Login authenticates the server. Empty credentials perform an
	// anonymous probe.
	Login(ctx context.Context, username, password string) error
	// Logout drops the server's session and marks it disconnected.
	Logout(ctx context.Context) error

	// Search returns one page (1-based) of catalog items matching term and
	// whether more pages follow.
	Search(ctx context.Context, term string, page, perPage int) ([]CatalogItem, bool, error)
	// Resolve finds the version matching lib, preferring the given axes.
	// An empty lib.Version asks for the latest version.
	Resolve(ctx context.Context, lib PlcLibrary, target, configuration, branch string) (*PackageVersion, error)
	// GetVersion fetches exactly the named version on the given axes.
	GetVersion(ctx context.Context, lib PlcLibrary, branch, configuration, target string) (*PackageVersion, error)
	// Download stores the artifact of v below cacheRoot, verifying its
	// checksum according to policy.
	Download(ctx context.Context, v *PackageVersion, policy ChecksumPolicy, cacheRoot string) error
	// InvalidateCache makes subsequent calls bypass any response cache.
	InvalidateCache()
}

// Publisher is implemented by servers that accept uploads.
type Publisher interface {
	// Push uploads v (with Binary set) and returns the stored version.
	Push(ctx context.Context, v *PackageVersion) (*PackageVersion, error)
}

// ChecksumPolicy selects how a download reacts to a SHA-256 mismatch.
type ChecksumPolicy int

const (
	// ChecksumThrow aborts the download.
	ChecksumThrow ChecksumPolicy = iota
	// ChecksumIgnoreMismatch logs the mismatch and keeps the artifact.
	ChecksumIgnoreMismatch
	// ChecksumIgnoreMismatchAndFallback retries through the server's
	// alternate transfer path and keeps whatever that delivers.
	ChecksumIgnoreMismatchAndFallback
)

var checksumPolicyNames = map[ChecksumPolicy]string{
	ChecksumThrow:                     "throw",
	ChecksumIgnoreMismatch:            "ignore",
	ChecksumIgnoreMismatchAndFallback: "fallback",
}

// String returns the flag spelling of the policy.
func (p ChecksumPolicy) String() string {
	if s, ok := checksumPolicyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("ChecksumPolicy(%d)", int(p))
}

// ParseChecksumPolicy parses "throw", "ignore" or "fallback".
func ParseChecksumPolicy(s string) (ChecksumPolicy, error) {
	for p, name := range checksumPolicyNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return ChecksumThrow, fmt.Errorf("unknown checksum policy %q (available: throw, ignore, fallback)", s)
}

// Connected filters servers down to the connected ones, preserving order.
func Connected(servers []Server) []Server {
	var out []Server
	for _, s := range servers {
		if s.Connected() {
			out = append(out, s)
		}
	}
	return out
}
