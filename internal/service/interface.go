package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/coordinator"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
)

// OverlayService is the command and query surface shared by HTTP and the bus.
type OverlayService interface {
	OpenSession(ctx context.Context, sessionID string) (*coordinator.Coordinator, error)
	CloseSession(ctx context.Context, sessionID string) error
	Session(ctx context.Context, sessionID string) (*coordinator.Coordinator, error)
	ListSessions(ctx context.Context) []domain.SessionResponse

	SubmitEvent(ctx context.Context, sessionID string, raw domain.RawEvent) (domain.Event, error)
	AddInterrupt(ctx context.Context, sessionID string, req *domain.AddInterruptRequest) (string, error)
	DismissInterrupt(ctx context.Context, sessionID, alertID string) error
	SetShow(ctx context.Context, sessionID, show string) error
	SetTicker(ctx context.Context, sessionID string, rotation []string) error
	Broadcast(ctx context.Context, sessionID string) error

	State(ctx context.Context, sessionID string) (domain.Snapshot, error)
	Events(ctx context.Context, sessionID string, since *time.Time) ([]domain.Event, error)
	Projection(ctx context.Context, sessionID string) (*domain.ProjectionResponse, error)
}
