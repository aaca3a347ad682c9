// Package ingest feeds bus messages from external producers into sessions.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/projector"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/registry"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/service"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/pubsub"
)

var ErrUnknownMessageType = errors.New("unknown message type")

// Consumer subscribes to the events pattern and applies each message to the
// session it names.
type Consumer struct {
	sub     pubsub.Subscriber
	pattern string
	svc     service.OverlayService
}

func NewConsumer(sub pubsub.Subscriber, pattern string, svc service.OverlayService) *Consumer {
	return &Consumer{sub: sub, pattern: pattern, svc: svc}
}

// Run consumes until ctx is cancelled or the subscription closes.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.sub.SubscribePattern(ctx, c.pattern)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.pattern, err)
	}

	l := log.Ctx(ctx)
	l.Info().Str("pattern", c.pattern).Msg("ingest consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c.handleLogged(ctx, msg)
		}
	}
}

func (c *Consumer) handleLogged(ctx context.Context, msg *pubsub.Message) {
	l := log.ForSession(ctx, msg.SessionID)
	err := c.Handle(log.WithLogger(ctx, l), msg)
	switch {
	case err == nil:
	case errors.Is(err, registry.ErrSessionOwned):
		// Another instance is the writer and receives the same message.
		l.Debug().Str("type", msg.Type).Msg("message for session owned elsewhere")
	default:
		evt := l.Warn().Err(err).Str("type", msg.Type)
		if code := projector.ErrorCode(err); code != "" {
			evt = evt.Str("code", code)
		}
		evt.Msg("ingest message dropped")
	}
}

// Handle applies one message.
func (c *Consumer) Handle(ctx context.Context, msg *pubsub.Message) error {
	if msg.SessionID == "" {
		return service.ErrEmptySessionID
	}

	switch msg.Type {
	case pubsub.TypeEvent:
		var raw domain.RawEvent
		if err := json.Unmarshal(msg.Payload, &raw); err != nil {
			return fmt.Errorf("invalid event payload: %w", err)
		}
		_, err := c.svc.SubmitEvent(ctx, msg.SessionID, raw)
		return err

	case pubsub.TypeAddInterrupt:
		var p pubsub.AddInterruptPayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			return fmt.Errorf("invalid add_interrupt payload: %w", err)
		}
		_, err := c.svc.AddInterrupt(ctx, msg.SessionID, &domain.AddInterruptRequest{
			ContentType: p.ContentType,
			Data:        p.Data,
			ID:          p.ID,
			DurationMS:  p.DurationMS,
		})
		return err

	case pubsub.TypeDismissInterrupt:
		var p pubsub.DismissInterruptPayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			return fmt.Errorf("invalid dismiss_interrupt payload: %w", err)
		}
		return c.svc.DismissInterrupt(ctx, msg.SessionID, p.AlertID)

	case pubsub.TypeSetShow:
		var p pubsub.SetShowPayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			return fmt.Errorf("invalid set_show payload: %w", err)
		}
		return c.svc.SetShow(ctx, msg.SessionID, p.Show)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}
}
