// Package coordinator owns the canonical overlay state of a session.
//
// Each Coordinator runs one worker goroutine that applies commands in arrival
// order. Producers only enqueue; the worker is the sole writer of State and
// broadcasts a snapshot after every commit.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/layers"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/prioritizer"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/metrics"
)

// ErrStopped is returned by operations on a stopped coordinator.
var ErrStopped = errors.New("coordinator stopped")

// Config describes a session at start.
type Config struct {
	SessionID        string
	Show             domain.ShowContext
	TickerRotation   []domain.ContentType
	RotationInterval time.Duration // 0 disables automatic rotation
}

// Deps are the collaborators shared by all sessions of a process.
type Deps struct {
	Creator *prioritizer.Creator
	Metrics *metrics.Overlay
	Logger  zerolog.Logger
	Now     func() time.Time
}

type expiry struct {
	timer *time.Timer
	token uint64
}

type Coordinator struct {
	id      string
	creator *prioritizer.Creator
	metrics *metrics.Overlay
	logger  zerolog.Logger
	now     func() time.Time

	inbox    *mailbox
	subs     *subscriberSet
	interval time.Duration
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	crashed  atomic.Bool

	// Owned by the worker goroutine.
	state     domain.State
	rotation  []domain.ContentType
	timers    map[string]expiry
	nextToken uint64
}

// New creates a coordinator. Call Start to run its worker.
func New(cfg Config, deps Deps) *Coordinator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Default()
	}
	show := cfg.Show
	if show == "" {
		show = domain.DefaultShow
	}

	c := &Coordinator{
		id:       cfg.SessionID,
		creator:  deps.Creator,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str(log.FieldSessionID, cfg.SessionID).Logger(),
		now:      deps.Now,
		inbox:    newMailbox(),
		subs:     newSubscriberSet(),
		interval: cfg.RotationInterval,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		state:    domain.NewState(show),
		rotation: append([]domain.ContentType(nil), cfg.TickerRotation...),
		timers:   make(map[string]expiry),
	}
	c.recompute()
	return c
}

// SessionID returns the session this coordinator owns.
func (c *Coordinator) SessionID() string { return c.id }

// Start launches the worker goroutine.
func (c *Coordinator) Start() {
	go c.run()
}

func (c *Coordinator) run() {
	defer close(c.done)
	defer c.shutdown()

	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.quit:
			return
		case <-c.inbox.ready():
			for _, cmd := range c.inbox.drain() {
				select {
				case <-c.quit:
					return
				default:
				}
				if !c.execute(cmd) {
					return
				}
			}
		case <-tick:
			if !c.execute(rotateTickerCmd{}) {
				return
			}
		}
	}
}

// execute applies cmd. A panic leaves the state unusable, so it ends the
// worker and the session has to be opened again from scratch.
func (c *Coordinator) execute(cmd command) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.crashed.Store(true)
			c.logger.Error().Interface("panic", r).Uint64(log.FieldVersion, c.state.Version).Msg("command panicked, stopping session")
			ok = false
		}
	}()
	cmd.apply(c)
	return true
}

// shutdown runs on the worker as it exits. Subscribers implementing Closer
// are told the session is gone.
func (c *Coordinator) shutdown() {
	c.inbox.close()
	c.cancelAllExpiries()
	for _, sub := range c.subs.list() {
		if closer, ok := sub.(Closer); ok {
			closer.Closed()
		}
	}
}

// Crashed reports whether the worker exited because a command panicked.
func (c *Coordinator) Crashed() bool { return c.crashed.Load() }

// Stop terminates the worker and discards the session state. Queued commands
// are dropped and pending GetState calls return ErrStopped.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.inbox.close()
		close(c.quit)
	})
	<-c.done
}

// Done is closed once the worker has exited.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

func (c *Coordinator) enqueue(cmd command) error {
	if !c.inbox.push(cmd) {
		return ErrStopped
	}
	return nil
}

// AddInterrupt queues new content and returns its id without waiting for the commit.
func (c *Coordinator) AddInterrupt(t domain.ContentType, data map[string]any, opts prioritizer.Options) (string, error) {
	if err := prioritizer.Validate(t, opts); err != nil {
		return "", err
	}
	if opts.ID == "" {
		id, err := c.creator.NewID()
		if err != nil {
			return "", err
		}
		opts.ID = id
	}
	if err := c.enqueue(addInterruptCmd{contentType: t, data: data, opts: opts}); err != nil {
		return "", err
	}
	return opts.ID, nil
}

// DismissInterrupt queues removal of id. Dismissing an absent id is a no-op.
func (c *Coordinator) DismissInterrupt(id string) error {
	return c.enqueue(dismissCmd{id: id})
}

// SetShow queues a show change.
func (c *Coordinator) SetShow(show domain.ShowContext) error {
	return c.enqueue(setShowCmd{show: show})
}

// ApplyEvent queues a validated event for projection.
func (c *Coordinator) ApplyEvent(e domain.Event) error {
	return c.enqueue(applyEventCmd{event: e})
}

// SetTickerRotation replaces the fallback rotation.
func (c *Coordinator) SetTickerRotation(rotation []domain.ContentType) error {
	return c.enqueue(setRotationCmd{rotation: append([]domain.ContentType(nil), rotation...)})
}

// RotateTicker advances the fallback rotation by one entry.
func (c *Coordinator) RotateTicker() error {
	return c.enqueue(rotateTickerCmd{})
}

// RequestBroadcast re-sends the current snapshot to every subscriber.
func (c *Coordinator) RequestBroadcast() error {
	return c.enqueue(broadcastCmd{})
}

// GetState waits for its turn in the queue and returns the committed snapshot.
func (c *Coordinator) GetState(ctx context.Context) (domain.Snapshot, error) {
	reply := make(chan domain.Snapshot, 1)
	if err := c.enqueue(getStateCmd{reply: reply}); err != nil {
		return domain.Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return domain.Snapshot{}, ctx.Err()
	case <-c.done:
		return domain.Snapshot{}, ErrStopped
	}
}

// Subscribe registers sub and queues delivery of the current snapshot to it.
func (c *Coordinator) Subscribe(sub Subscriber) error {
	c.subs.add(sub)
	if err := c.enqueue(greetCmd{sub: sub}); err != nil {
		c.subs.remove(sub.ID())
		return err
	}
	c.logger.Debug().Str(log.FieldSubscriber, sub.ID()).Msg("subscriber added")
	return nil
}

// Unsubscribe removes the subscriber with the given id immediately.
func (c *Coordinator) Unsubscribe(id string) {
	if c.subs.remove(id) {
		c.logger.Debug().Str(log.FieldSubscriber, id).Msg("subscriber removed")
	}
}

// Subscribers returns the number of registered subscribers.
func (c *Coordinator) Subscribers() int { return c.subs.len() }

// recompute derives active content, priority level and layers from the stack.
func (c *Coordinator) recompute() {
	st := &c.state
	if valid := prioritizer.Valid(st.InterruptStack); len(valid) != len(st.InterruptStack) {
		n := len(st.InterruptStack) - len(valid)
		c.metrics.InvalidEntries(context.Background(), c.id, n)
		c.logger.Debug().Int("count", n).Msg("skipped invalid stack entries")
	}
	st.ActiveContent = prioritizer.DetermineActive(st.InterruptStack, c.rotation)
	st.PriorityLevel = prioritizer.PriorityLevelOf(st.InterruptStack)
	st.Layers = layers.AssignToLayers(c.routable(), st.CurrentShow)
}

// routable is every piece of content competing for a layer.
func (c *Coordinator) routable() []domain.Content {
	st := &c.state
	out := make([]domain.Content, 0, len(st.Alerts)+len(st.InterruptStack)+1)
	out = append(out, st.InterruptStack...)
	out = append(out, st.Alerts...)
	if st.ActiveContent != nil {
		out = append(out, *st.ActiveContent)
	}
	return out
}

// commit recomputes derived fields, bumps the version and broadcasts.
func (c *Coordinator) commit() {
	c.recompute()
	c.state.Version++
	c.state.LastUpdated = c.now()

	ctx := context.Background()
	c.metrics.Committed(ctx, c.id)
	c.broadcast()
	c.logger.Debug().Uint64(log.FieldVersion, c.state.Version).Msg("state committed")
}

func (c *Coordinator) broadcast() {
	if dropped := c.subs.broadcast(c.snapshot()); dropped > 0 {
		for i := 0; i < dropped; i++ {
			c.metrics.DeliveryDropped(context.Background(), c.id)
		}
		c.logger.Warn().Int("dropped", dropped).Uint64(log.FieldVersion, c.state.Version).Msg("snapshot not delivered to some subscribers")
	}
}

func (c *Coordinator) snapshot() domain.Snapshot {
	return c.state.Snapshot(c.id)
}

func (c *Coordinator) removeFromStack(id string) bool {
	stack := c.state.InterruptStack
	for i, entry := range stack {
		if entry.ID == id {
			out := make([]domain.Content, 0, len(stack)-1)
			out = append(out, stack[:i]...)
			c.state.InterruptStack = append(out, stack[i+1:]...)
			return true
		}
	}
	return false
}

// scheduleExpiry arms a timer that queues a dismiss for id. The token lets a
// late timer recognise that its entry has since been replaced.
func (c *Coordinator) scheduleExpiry(id string, after time.Duration) {
	c.nextToken++
	token := c.nextToken
	timer := time.AfterFunc(after, func() {
		_ = c.enqueue(dismissCmd{id: id, token: token})
	})
	c.timers[id] = expiry{timer: timer, token: token}
}

func (c *Coordinator) cancelExpiry(id string) {
	if exp, ok := c.timers[id]; ok {
		exp.timer.Stop()
		delete(c.timers, id)
	}
}

func (c *Coordinator) cancelAllExpiries() {
	for id := range c.timers {
		c.cancelExpiry(id)
	}
}
