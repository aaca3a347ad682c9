package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/prioritizer"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/metrics"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) Generate() (string, error) {
	return fmt.Sprintf("c%d", s.n.Add(1)), nil
}

type harness struct {
	reader *sdkmetric.ManualReader
	deps   Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := metrics.NewOverlay(provider.Meter("test"))
	require.NoError(t, err)

	return &harness{
		reader: reader,
		deps: Deps{
			Creator: prioritizer.NewCreator(&seqIDs{}, nil),
			Metrics: m,
			Logger:  zerolog.Nop(),
		},
	}
}

func (h *harness) start(t *testing.T, cfg Config) *Coordinator {
	t.Helper()
	if cfg.SessionID == "" {
		cfg.SessionID = "s1"
	}
	c := New(cfg, h.deps)
	c.Start()
	t.Cleanup(c.Stop)
	return c
}

func (h *harness) counter(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func subscribe(t *testing.T, c *Coordinator, id string) *ChannelSubscriber {
	t.Helper()
	sub := NewChannelSubscriber(id, 64)
	require.NoError(t, c.Subscribe(sub))
	next(t, sub) // initial snapshot
	return sub
}

func next(t *testing.T, sub *ChannelSubscriber) domain.Snapshot {
	t.Helper()
	select {
	case snap := <-sub.C():
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return domain.Snapshot{}
	}
}

func quiet(t *testing.T, sub *ChannelSubscriber, wait time.Duration) {
	t.Helper()
	select {
	case snap := <-sub.C():
		t.Fatalf("unexpected snapshot version %d", snap.Version)
	case <-time.After(wait):
	}
}

func state(t *testing.T, c *Coordinator) domain.Snapshot {
	t.Helper()
	snap, err := c.GetState(context.Background())
	require.NoError(t, err)
	return snap
}

func ms(d time.Duration) *time.Duration { return &d }

func TestCoordinator_InitialState(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{Show: domain.ShowCoding, TickerRotation: []domain.ContentType{domain.ContentTicker}})

	snap := state(t, c)
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, domain.ShowCoding, snap.CurrentShow)
	assert.Zero(t, snap.Version)
	assert.Empty(t, snap.InterruptStack)
	assert.Equal(t, domain.PriorityLevelTicker, snap.PriorityLevel)
	require.NotNil(t, snap.ActiveContent)
	assert.Equal(t, domain.ContentTicker, snap.ActiveContent.Type)
	require.NotNil(t, snap.Layers.Background)
	assert.Equal(t, prioritizer.TickerID(domain.ContentTicker), snap.Layers.Background.ID)
}

func TestCoordinator_EmptyWithoutRotation(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})

	snap := state(t, c)
	assert.Equal(t, domain.DefaultShow, snap.CurrentShow)
	assert.Nil(t, snap.ActiveContent)
	assert.Nil(t, snap.Layers.Foreground)
	assert.Nil(t, snap.Layers.Midground)
	assert.Nil(t, snap.Layers.Background)
}

func TestCoordinator_AddInterruptCommitsAndBroadcasts(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{TickerRotation: []domain.ContentType{domain.ContentTicker}})
	sub := subscribe(t, c, "viewer")

	id, err := c.AddInterrupt(domain.ContentAlert, map[string]any{"message": "hi"}, prioritizer.Options{})
	require.NoError(t, err)
	assert.Equal(t, "c1", id)

	snap := next(t, sub)
	assert.Equal(t, uint64(1), snap.Version)
	require.NotNil(t, snap.ActiveContent)
	assert.Equal(t, id, snap.ActiveContent.ID)
	assert.Equal(t, prioritizer.PriorityAlert, snap.ActiveContent.Priority)
	assert.Equal(t, domain.PriorityLevelAlert, snap.PriorityLevel)
	require.NotNil(t, snap.Layers.Foreground)
	assert.Equal(t, id, snap.Layers.Foreground.ID)
	assert.Equal(t, "hi", snap.Layers.Foreground.Data["message"])
	assert.Len(t, snap.InterruptStack, 1)
	assert.False(t, snap.LastUpdated.IsZero())
	assert.Equal(t, int64(1), h.counter(t, "overlay.commits"))
}

func TestCoordinator_AddInterruptRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})

	_, err := c.AddInterrupt("", nil, prioritizer.Options{})
	assert.ErrorIs(t, err, prioritizer.ErrEmptyContentType)

	_, err = c.AddInterrupt(domain.ContentAlert, nil, prioritizer.Options{Duration: ms(-time.Second)})
	assert.ErrorIs(t, err, prioritizer.ErrNegativeDuration)

	assert.Zero(t, state(t, c).Version)
}

func TestCoordinator_ActiveIsHighestPriorityRegardlessOfPosition(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})
	noExpiry := prioritizer.Options{Duration: ms(0)}

	_, err := c.AddInterrupt(domain.ContentTicker, nil, noExpiry)
	require.NoError(t, err)
	alertID, err := c.AddInterrupt(domain.ContentAlert, nil, noExpiry)
	require.NoError(t, err)
	_, err = c.AddInterrupt(domain.ContentSubTrain, nil, noExpiry)
	require.NoError(t, err)

	snap := state(t, c)
	require.NotNil(t, snap.ActiveContent)
	assert.Equal(t, alertID, snap.ActiveContent.ID)
	assert.Equal(t, uint64(3), snap.Version)
}

func TestCoordinator_DismissCancelsExpiry(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})
	sub := subscribe(t, c, "viewer")

	id, err := c.AddInterrupt(domain.ContentAlert, nil, prioritizer.Options{Duration: ms(60 * time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next(t, sub).Version)

	require.NoError(t, c.DismissInterrupt(id))
	snap := next(t, sub)
	assert.Equal(t, uint64(2), snap.Version)
	assert.Empty(t, snap.InterruptStack)
	assert.Zero(t, pendingExpiries(c))

	quiet(t, sub, 150*time.Millisecond)
	assert.Equal(t, uint64(2), state(t, c).Version)
}

func TestCoordinator_ExpiryDismisses(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})
	sub := subscribe(t, c, "viewer")

	_, err := c.AddInterrupt(domain.ContentAlert, nil, prioritizer.Options{Duration: ms(30 * time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next(t, sub).Version)

	snap := next(t, sub)
	assert.Equal(t, uint64(2), snap.Version)
	assert.Empty(t, snap.InterruptStack)
	assert.Nil(t, snap.ActiveContent)
	assert.Equal(t, domain.PriorityLevelTicker, snap.PriorityLevel)
	assert.Zero(t, pendingExpiries(c))
}

func TestCoordinator_DismissAbsentIsNoop(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})
	sub := subscribe(t, c, "viewer")

	require.NoError(t, c.DismissInterrupt("missing"))
	require.NoError(t, c.DismissInterrupt("missing"))

	quiet(t, sub, 50*time.Millisecond)
	assert.Zero(t, state(t, c).Version)
}

func TestCoordinator_StaleTimerDoesNotRemoveReplacement(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})

	_, err := c.AddInterrupt(domain.ContentAlert, nil, prioritizer.Options{ID: "x", Duration: ms(30 * time.Millisecond)})
	require.NoError(t, err)
	_, err = c.AddInterrupt(domain.ContentAlert, map[string]any{"v": 2}, prioritizer.Options{ID: "x", Duration: ms(0)})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	snap := state(t, c)
	require.Len(t, snap.InterruptStack, 1)
	assert.Equal(t, "x", snap.InterruptStack[0].ID)
	assert.Equal(t, 2, snap.InterruptStack[0].Data["v"])
	assert.Equal(t, uint64(2), snap.Version)
}

func TestCoordinator_SetShowReroutes(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{Show: domain.ShowCoding})
	sub := subscribe(t, c, "viewer")

	id, err := c.AddInterrupt(domain.ContentBuildFailure, nil, prioritizer.Options{Duration: ms(0)})
	require.NoError(t, err)
	snap := next(t, sub)
	require.NotNil(t, snap.Layers.Foreground)
	assert.Equal(t, id, snap.Layers.Foreground.ID)

	require.NoError(t, c.SetShow(domain.ShowIronmon))
	snap = next(t, sub)
	assert.Equal(t, uint64(2), snap.Version)
	assert.Equal(t, domain.ShowIronmon, snap.CurrentShow)
	assert.Nil(t, snap.Layers.Foreground)
	require.NotNil(t, snap.Layers.Background)
	assert.Equal(t, id, snap.Layers.Background.ID)

	require.NoError(t, c.SetShow(domain.ShowIronmon))
	quiet(t, sub, 50*time.Millisecond)
}

func TestCoordinator_ApplyEvent(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.ApplyEvent(domain.Event{
		Type:      domain.EventStreamOnline,
		Timestamp: ts,
		Data:      map[string]any{"title": "Stream Title", "game": "Programming"},
	}))
	require.NoError(t, c.ApplyEvent(domain.Event{Type: "chat_message", Timestamp: ts, Data: map[string]any{}}))

	snap := state(t, c)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, domain.StatusOnline, snap.Stream.Status)
	assert.Equal(t, "Stream Title", snap.Stream.Title)
	assert.Equal(t, "Programming", snap.Stream.Game)
	require.NotNil(t, snap.Stream.StartedAt)
	assert.True(t, ts.Equal(*snap.Stream.StartedAt))
	assert.Equal(t, int64(1), h.counter(t, "overlay.events.dropped"))
}

func TestCoordinator_EventAlertsAreRouted(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.ApplyEvent(domain.Event{
		Type:      domain.EventAlertCreated,
		Timestamp: ts,
		Data:      map[string]any{"id": "a1", "type": "alert", "message": "new follower"},
	}))
	snap := state(t, c)
	require.NotNil(t, snap.Layers.Foreground)
	assert.Equal(t, "a1", snap.Layers.Foreground.ID)

	require.NoError(t, c.ApplyEvent(domain.Event{
		Type:      domain.EventAlertDismissed,
		Timestamp: ts.Add(time.Second),
		Data:      map[string]any{"alert_id": "a1"},
	}))
	snap = state(t, c)
	assert.Nil(t, snap.Layers.Foreground)
	assert.Equal(t, uint64(2), snap.Version)
}

func TestCoordinator_TickerRotation(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})

	require.NoError(t, c.SetTickerRotation([]domain.ContentType{domain.ContentTicker, domain.ContentEmoteStats}))
	snap := state(t, c)
	require.NotNil(t, snap.ActiveContent)
	assert.Equal(t, domain.ContentTicker, snap.ActiveContent.Type)

	require.NoError(t, c.RotateTicker())
	snap = state(t, c)
	assert.Equal(t, domain.ContentEmoteStats, snap.ActiveContent.Type)
	assert.Equal(t, prioritizer.PriorityTicker, snap.ActiveContent.Priority)

	// Rotation is invisible while an interrupt is active.
	_, err := c.AddInterrupt(domain.ContentAlert, nil, prioritizer.Options{Duration: ms(0)})
	require.NoError(t, err)
	before := state(t, c).Version
	require.NoError(t, c.RotateTicker())
	assert.Equal(t, before, state(t, c).Version)
}

func TestCoordinator_AutomaticRotation(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{
		TickerRotation:   []domain.ContentType{domain.ContentTicker, domain.ContentEmoteStats},
		RotationInterval: 20 * time.Millisecond,
	})

	require.Eventually(t, func() bool {
		snap := state(t, c)
		return snap.Version > 0 && snap.ActiveContent != nil
	}, time.Second, 10*time.Millisecond)
}

func TestCoordinator_RequestBroadcastKeepsVersion(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})
	sub := subscribe(t, c, "viewer")

	require.NoError(t, c.RequestBroadcast())
	snap := next(t, sub)
	assert.Zero(t, snap.Version)
}

type panicSubscriber struct{}

func (panicSubscriber) ID() string                   { return "panic" }
func (panicSubscriber) Deliver(domain.Snapshot) bool { panic("boom") }

func TestCoordinator_SubscriberFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})

	require.NoError(t, c.Subscribe(panicSubscriber{}))
	full := NewChannelSubscriber("full", 1)
	require.NoError(t, c.Subscribe(full))
	good := subscribe(t, c, "good")

	for i := 0; i < 3; i++ {
		_, err := c.AddInterrupt(domain.ContentFollow, nil, prioritizer.Options{Duration: ms(0)})
		require.NoError(t, err)
	}
	for want := uint64(1); want <= 3; want++ {
		assert.Equal(t, want, next(t, good).Version)
	}
	assert.Positive(t, h.counter(t, "overlay.deliveries.dropped"))
}

func TestCoordinator_Unsubscribe(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})
	sub := subscribe(t, c, "viewer")
	assert.Equal(t, 1, c.Subscribers())

	c.Unsubscribe("viewer")
	assert.Zero(t, c.Subscribers())

	_, err := c.AddInterrupt(domain.ContentAlert, nil, prioritizer.Options{})
	require.NoError(t, err)
	quiet(t, sub, 50*time.Millisecond)
}

func TestCoordinator_SerializesConcurrentProducers(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})
	sub := NewChannelSubscriber("viewer", 1024)
	require.NoError(t, c.Subscribe(sub))

	const producers, each = 8, 25
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				_, err := c.AddInterrupt(domain.ContentFollow, nil, prioritizer.Options{Duration: ms(0)})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	snap := state(t, c)
	assert.Equal(t, uint64(producers*each), snap.Version)
	assert.Len(t, snap.InterruptStack, producers*each)

	// Snapshots arrive with strictly increasing versions after the greeting.
	var last uint64
	first := true
	for len(sub.C()) > 0 {
		s := <-sub.C()
		if !first {
			assert.Greater(t, s.Version, last)
		}
		last, first = s.Version, false
	}
}

func TestCoordinator_StoppedRejectsCommands(t *testing.T) {
	h := newHarness(t)
	c := New(Config{SessionID: "s1"}, h.deps)
	c.Start()

	_, err := c.AddInterrupt(domain.ContentAlert, nil, prioritizer.Options{Duration: ms(time.Hour)})
	require.NoError(t, err)
	c.Stop()
	c.Stop()

	_, err = c.GetState(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, c.DismissInterrupt("x"), ErrStopped)
	_, err = c.AddInterrupt(domain.ContentAlert, nil, prioritizer.Options{})
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, c.Subscribe(NewChannelSubscriber("late", 1)), ErrStopped)
	assert.Zero(t, c.Subscribers())
}

func TestCoordinator_CommandPanicStopsSession(t *testing.T) {
	h := newHarness(t)
	c := h.start(t, Config{})
	sub := subscribe(t, c, "viewer")

	require.NoError(t, c.enqueue(funcCmd(func(c *Coordinator) {
		c.state.InterruptStack = append(c.state.InterruptStack, domain.Content{ID: "half", Type: domain.ContentAlert, Priority: 100})
		panic("boom")
	})))

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("worker kept running after a command panicked")
	}
	assert.True(t, c.Crashed())
	quiet(t, sub, 50*time.Millisecond)

	_, err := c.GetState(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	_, err = c.AddInterrupt(domain.ContentAlert, nil, prioritizer.Options{})
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, c.RequestBroadcast(), ErrStopped)
	c.Stop()
}

type closingSubscriber struct {
	*ChannelSubscriber
	closed chan struct{}
}

func (s closingSubscriber) Closed() { close(s.closed) }

func TestCoordinator_StopNotifiesClosers(t *testing.T) {
	h := newHarness(t)
	c := New(Config{SessionID: "s1"}, h.deps)
	c.Start()

	sub := closingSubscriber{ChannelSubscriber: NewChannelSubscriber("viewer", 4), closed: make(chan struct{})}
	require.NoError(t, c.Subscribe(sub))
	subscribe(t, c, "plain")

	c.Stop()
	select {
	case <-sub.closed:
	case <-time.After(time.Second):
		t.Fatal("subscriber not told about stop")
	}
}
