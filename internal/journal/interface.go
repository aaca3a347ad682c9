// Package journal records accepted overlay events per session so state can be
// replayed outside the coordinator.
package journal

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
)

var ErrEmptySession = errors.New("session id is required")

// Store is an append-only event log keyed by session.
type Store interface {
	// Append records e after every event already stored for sessionID.
	Append(ctx context.Context, sessionID string, e domain.Event) error
	// List returns the session's events in append order.
	List(ctx context.Context, sessionID string) ([]domain.Event, error)
	// Delete drops the session's events.
	Delete(ctx context.Context, sessionID string) error
}
