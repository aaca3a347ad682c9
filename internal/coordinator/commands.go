package coordinator

import (
	"context"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/prioritizer"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/projector"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
)

// command is a unit of work run on the worker goroutine.
type command interface {
	apply(c *Coordinator)
}

type addInterruptCmd struct {
	contentType domain.ContentType
	data        map[string]any
	opts        prioritizer.Options
}

func (cmd addInterruptCmd) apply(c *Coordinator) {
	content, err := c.creator.Create(cmd.contentType, cmd.data, cmd.opts)
	if err != nil {
		c.logger.Warn().Err(err).Str(log.FieldContentType, string(cmd.contentType)).Msg("interrupt rejected")
		return
	}

	// Re-adding an id replaces the entry and its timer.
	c.removeFromStack(content.ID)
	c.cancelExpiry(content.ID)

	c.state.InterruptStack = append(c.state.InterruptStack, content)
	if d := content.ExpiresIn(); d > 0 {
		c.scheduleExpiry(content.ID, d)
	}
	c.commit()

	c.logger.Info().
		Str(log.FieldContentID, content.ID).
		Str(log.FieldContentType, string(content.Type)).
		Int64("duration_ms", content.Duration).
		Msg("interrupt added")
}

// dismissCmd removes an entry. A non-zero token marks a timer-issued dismiss,
// which only applies while the timer it came from is still current.
type dismissCmd struct {
	id    string
	token uint64
}

func (cmd dismissCmd) apply(c *Coordinator) {
	if cmd.token != 0 {
		exp, ok := c.timers[cmd.id]
		if !ok || exp.token != cmd.token {
			return
		}
	}
	c.cancelExpiry(cmd.id)
	if !c.removeFromStack(cmd.id) {
		return
	}
	c.commit()

	c.logger.Info().Str(log.FieldContentID, cmd.id).Bool("expired", cmd.token != 0).Msg("interrupt dismissed")
}

type setShowCmd struct {
	show domain.ShowContext
}

func (cmd setShowCmd) apply(c *Coordinator) {
	if cmd.show == "" || cmd.show == c.state.CurrentShow {
		return
	}
	c.state.CurrentShow = cmd.show
	c.commit()

	c.logger.Info().Str(log.FieldShow, string(cmd.show)).Msg("show changed")
}

type applyEventCmd struct {
	event domain.Event
}

func (cmd applyEventCmd) apply(c *Coordinator) {
	if !projector.IsRecognized(cmd.event) {
		c.metrics.EventDropped(context.Background(), c.id, string(cmd.event.Type))
		c.logger.Debug().Str(log.FieldEventType, string(cmd.event.Type)).Msg("unrecognized event dropped")
		return
	}
	c.state = projector.Apply(c.state, cmd.event)
	c.commit()
}

type setRotationCmd struct {
	rotation []domain.ContentType
}

func (cmd setRotationCmd) apply(c *Coordinator) {
	c.rotation = cmd.rotation
	c.commit()
}

type rotateTickerCmd struct{}

func (rotateTickerCmd) apply(c *Coordinator) {
	if len(c.rotation) < 2 {
		return
	}
	next := make([]domain.ContentType, 0, len(c.rotation))
	c.rotation = append(append(next, c.rotation[1:]...), c.rotation[0])
	// The rotation is only visible while nothing outranks it.
	if len(prioritizer.Valid(c.state.InterruptStack)) > 0 {
		return
	}
	c.commit()
}

type getStateCmd struct {
	reply chan<- domain.Snapshot
}

func (cmd getStateCmd) apply(c *Coordinator) {
	cmd.reply <- c.snapshot()
}

type broadcastCmd struct{}

func (broadcastCmd) apply(c *Coordinator) {
	c.broadcast()
}

// greetCmd sends the current snapshot to a new subscriber.
type greetCmd struct {
	sub Subscriber
}

func (cmd greetCmd) apply(c *Coordinator) {
	if !deliver(cmd.sub, c.snapshot()) {
		c.metrics.DeliveryDropped(context.Background(), c.id)
	}
}
