package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/coordinator"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/journal"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/prioritizer"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/projector"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/registry"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
)

var (
	ErrSessionNotFound = coordinator.ErrSessionNotFound
	ErrSessionOwned    = registry.ErrSessionOwned
	ErrEmptySessionID  = errors.New("session id is required")
	ErrEmptyAlertID    = errors.New("alert id is required")
)

type overlayServiceImpl struct {
	manager  *coordinator.Manager
	registry registry.SessionRegistry
	journal  journal.Store
}

// NewOverlayService creates the overlay service.
func NewOverlayService(manager *coordinator.Manager, reg registry.SessionRegistry, store journal.Store) OverlayService {
	return &overlayServiceImpl{
		manager:  manager,
		registry: reg,
		journal:  store,
	}
}

func (s *overlayServiceImpl) OpenSession(ctx context.Context, sessionID string) (*coordinator.Coordinator, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	return s.manager.Acquire(ctx, sessionID)
}

func (s *overlayServiceImpl) CloseSession(ctx context.Context, sessionID string) error {
	if err := s.manager.Close(ctx, sessionID); err != nil {
		return err
	}
	if err := s.journal.Delete(ctx, sessionID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldSessionID, sessionID).Msg("failed to clear journal")
	}
	return nil
}

// Session returns the running coordinator, or explains why there is none.
func (s *overlayServiceImpl) Session(ctx context.Context, sessionID string) (*coordinator.Coordinator, error) {
	if c, ok := s.manager.Get(sessionID); ok {
		return c, nil
	}
	owner, err := s.registry.Owner(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if owner != "" {
		return nil, fmt.Errorf("%w: %s held by %s", ErrSessionOwned, sessionID, owner)
	}
	return nil, ErrSessionNotFound
}

func (s *overlayServiceImpl) ListSessions(ctx context.Context) []domain.SessionResponse {
	ids := s.manager.Sessions()
	out := make([]domain.SessionResponse, 0, len(ids))
	for _, id := range ids {
		c, ok := s.manager.Get(id)
		if !ok {
			continue
		}
		owner, _ := s.registry.Owner(ctx, id)
		out = append(out, domain.SessionResponse{
			SessionID:   id,
			Owner:       owner,
			Subscribers: c.Subscribers(),
		})
	}
	return out
}

// SubmitEvent validates raw, journals it and hands it to the session writer.
// Validation failures are returned before anything is recorded.
func (s *overlayServiceImpl) SubmitEvent(ctx context.Context, sessionID string, raw domain.RawEvent) (domain.Event, error) {
	e, err := projector.Validate(raw)
	if err != nil {
		return domain.Event{}, err
	}

	c, err := s.OpenSession(ctx, sessionID)
	if err != nil {
		return domain.Event{}, err
	}

	if err := s.journal.Append(ctx, sessionID, e); err != nil {
		return domain.Event{}, fmt.Errorf("failed to journal event: %w", err)
	}
	if err := c.ApplyEvent(e); err != nil {
		return domain.Event{}, err
	}
	return e, nil
}

func (s *overlayServiceImpl) AddInterrupt(ctx context.Context, sessionID string, req *domain.AddInterruptRequest) (string, error) {
	duration, err := req.Duration()
	if err != nil {
		return "", err
	}
	c, err := s.OpenSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return c.AddInterrupt(domain.ContentType(req.ContentType), req.Data, prioritizer.Options{
		ID:       req.ID,
		Duration: duration,
	})
}

func (s *overlayServiceImpl) DismissInterrupt(ctx context.Context, sessionID, alertID string) error {
	if alertID == "" {
		return ErrEmptyAlertID
	}
	c, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	return c.DismissInterrupt(alertID)
}

func (s *overlayServiceImpl) SetShow(ctx context.Context, sessionID, show string) error {
	c, err := s.OpenSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sc := domain.ShowContext(show)
	if !sc.IsValid() {
		l := log.Ctx(ctx)
		l.Warn().Str(log.FieldShow, show).Msg("unknown show, default routing applies")
	}
	return c.SetShow(sc)
}

func (s *overlayServiceImpl) SetTicker(ctx context.Context, sessionID string, rotation []string) error {
	c, err := s.OpenSession(ctx, sessionID)
	if err != nil {
		return err
	}
	types := make([]domain.ContentType, 0, len(rotation))
	for _, t := range rotation {
		if t != "" {
			types = append(types, domain.ContentType(t))
		}
	}
	return c.SetTickerRotation(types)
}

func (s *overlayServiceImpl) Broadcast(ctx context.Context, sessionID string) error {
	c, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	return c.RequestBroadcast()
}

func (s *overlayServiceImpl) State(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	c, err := s.Session(ctx, sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return c.GetState(ctx)
}

func (s *overlayServiceImpl) Events(ctx context.Context, sessionID string, since *time.Time) ([]domain.Event, error) {
	events, err := s.journal.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return projector.EventsSince(events, since), nil
}

// Projection replays the journal from an empty state.
func (s *overlayServiceImpl) Projection(ctx context.Context, sessionID string) (*domain.ProjectionResponse, error) {
	events, err := s.journal.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state := projector.Project(events, domain.NewState(domain.DefaultShow))
	snap := state.Snapshot(sessionID)
	return &domain.ProjectionResponse{
		SessionID: sessionID,
		Events:    len(events),
		Stream:    snap.Stream,
		Alerts:    domain.CopyContents(state.Alerts),
	}, nil
}
