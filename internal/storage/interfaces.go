// Package storage defines the verification session store contract.
// The memory backend is the default; the postgres backend shares
// sessions across processes in the split deployment.
package storage

import (
	"context"
	"time"

	"nftgate/internal/domain"
)

// SessionStore tracks live (non-terminal) verification sessions keyed by
// (user, chat). At most one session exists per key.
type SessionStore interface {
	// Put stores the session, replacing any existing session for the
	// same key. A new join replaces a stale pending session.
	Put(ctx context.Context, s *domain.VerificationSession) error

	// Get retrieves a live session. Returns ErrNotFound if none exists.
	Get(ctx context.Context, key domain.SessionKey) (*domain.VerificationSession, error)

	// Remove atomically checks and removes the session, returning it.
	// Returns ErrNotFound when no live session matches. This is the
	// sole mutual-exclusion point for terminal transitions: whichever
	// concurrent event removes the session first owns the terminal
	// state; every other event sees ErrNotFound and no-ops.
	Remove(ctx context.Context, key domain.SessionKey) (*domain.VerificationSession, error)

	// Expired returns the keys of sessions whose timeout deadline has
	// passed at the given instant. The caller drives each through the
	// timeout transition; a key that vanishes in between is a no-op.
	Expired(ctx context.Context, now time.Time) ([]domain.SessionKey, error)

	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)
}
