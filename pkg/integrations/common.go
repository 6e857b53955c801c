package integrations

import (
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/plcpack/pkg/cache"
)

const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a resource doesn't exist on the server.
	ErrNotFound = cache.ErrNotFound

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = cache.ErrNetwork

	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = stderrors.New("unauthorized")
)

// NewHTTPClient creates an HTTP client with a standard timeout for server requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// BaseURL trims whitespace and trailing slashes from a configured server URL.
func BaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// Endpoint joins base and path and encodes query.
func Endpoint(base, path string, query url.Values) string {
	u := BaseURL(base) + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }

// IsNotFound reports whether err means the server does not know the
// requested resource.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}
