// Package registry decides which instance is the single writer for a session.
package registry

import (
	"context"
	"errors"
)

// ErrSessionOwned is returned when another instance holds the session.
var ErrSessionOwned = errors.New("session is owned by another instance")

// SessionRegistry grants single-writer ownership of session keys.
type SessionRegistry interface {
	// Claim makes this instance the writer for sessionID. Claiming a session
	// this instance already owns refreshes the claim.
	Claim(ctx context.Context, sessionID string) error
	// Release gives up ownership. Releasing a session owned by someone else
	// is a no-op.
	Release(ctx context.Context, sessionID string) error
	// Owner returns the instance id holding sessionID, or "" when unclaimed.
	Owner(ctx context.Context, sessionID string) (string, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}
