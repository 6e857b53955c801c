// Package session stores login tokens of package servers.
//
// A login against a package server yields a token that later runs reuse
// until it expires, so credentials are entered once per source:
//
//	store, err := session.NewFileStore("") // ~/.config/plcpack/sessions/
//	sess := session.New("public", "jane", token, session.DefaultTTL)
//	err = store.Set(ctx, sess)
//
//	sess, err = store.Get(ctx, "public") // nil when absent or expired
//
// Sessions are keyed by source name. The catalog server uses a
// [MemoryStore] to track the tokens it issued.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for session operations.
var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExpired is returned when a session has exceeded its TTL.
	ErrExpired = errors.New("expired")
)

// Session is an authenticated login against one source.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired returns true if the session has expired. A session without
// expiry never expires.
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Store is the interface for session storage backends.
type Store interface {
	// Get retrieves a session by ID.
	// Returns nil, nil if the session doesn't exist or has expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, session *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions.
	Cleanup(ctx context.Context) error
}

// DefaultTTL is the default session duration.
const DefaultTTL = 7 * 24 * time.Hour

// GenerateToken creates a random opaque token.
func GenerateToken() string {
	return uuid.NewString()
}

// New creates a session for id. A ttl of 0 never expires.
func New(id, username, token string, ttl time.Duration) *Session {
	now := time.Now()
	s := &Session{
		ID:        id,
		Username:  username,
		Token:     token,
		CreatedAt: now,
	}
	if ttl > 0 {
		s.ExpiresAt = now.Add(ttl)
	}
	return s
}
