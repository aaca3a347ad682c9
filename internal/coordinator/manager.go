package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/registry"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
)

// ErrSessionNotFound is returned when this instance has no coordinator for a session.
var ErrSessionNotFound = errors.New("session not found")

// OpenHook runs after a coordinator starts, before Acquire returns it.
type OpenHook func(c *Coordinator)

// Manager keeps one coordinator per session owned by this instance.
type Manager struct {
	registry registry.SessionRegistry
	defaults Config
	deps     Deps

	mu       sync.Mutex
	sessions map[string]*Coordinator
	hooks    []OpenHook
}

// NewManager creates a manager. defaults.SessionID is ignored.
func NewManager(reg registry.SessionRegistry, defaults Config, deps Deps) *Manager {
	return &Manager{
		registry: reg,
		defaults: defaults,
		deps:     deps,
		sessions: make(map[string]*Coordinator),
	}
}

// OnOpen registers a hook for newly opened sessions.
func (m *Manager) OnOpen(hook OpenHook) {
	m.mu.Lock()
	m.hooks = append(m.hooks, hook)
	m.mu.Unlock()
}

// Acquire returns the coordinator for sessionID, claiming the session and
// starting a cold coordinator when this instance does not run it yet.
// It fails with registry.ErrSessionOwned when another instance is the writer.
func (m *Manager) Acquire(ctx context.Context, sessionID string) (*Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.sessions[sessionID]; ok {
		return c, nil
	}

	if err := m.registry.Claim(ctx, sessionID); err != nil {
		return nil, err
	}

	cfg := m.defaults
	cfg.SessionID = sessionID
	c := New(cfg, m.deps)
	show := c.state.CurrentShow
	c.Start()
	m.sessions[sessionID] = c
	go m.watch(c)

	for _, hook := range m.hooks {
		hook(c)
	}
	c.metrics.SessionOpened(ctx)

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldSessionID, sessionID).Str(log.FieldShow, string(show)).Msg("session opened")
	return c, nil
}

// Get returns the running coordinator for sessionID.
func (m *Manager) Get(sessionID string) (*Coordinator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[sessionID]
	return c, ok
}

// Close stops the session's coordinator, discards its state and releases
// the claim.
func (m *Manager) Close(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	c, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	c.Stop()
	c.metrics.SessionClosed(ctx)

	if err := m.registry.Release(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to release session %s: %w", sessionID, err)
	}

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldSessionID, sessionID).Msg("session closed")
	return nil
}

// Drop stops a coordinator without releasing its claim. It is used when
// ownership has already moved to another instance.
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	c, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		c.Stop()
		c.metrics.SessionClosed(context.Background())
		l := log.L()
		l.Warn().Str(log.FieldSessionID, sessionID).Msg("session dropped")
	}
}

// watch forgets a coordinator whose worker exited on its own so that the next
// Acquire starts the session cold.
func (m *Manager) watch(c *Coordinator) {
	<-c.Done()

	sessionID := c.SessionID()
	m.mu.Lock()
	current, ok := m.sessions[sessionID]
	if !ok || current != c {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	ctx := context.Background()
	c.metrics.SessionClosed(ctx)
	l := log.L()
	if err := m.registry.Release(ctx, sessionID); err != nil {
		l.Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("failed to release crashed session")
	}
	l.Error().Str(log.FieldSessionID, sessionID).Bool("crashed", c.Crashed()).Msg("session worker exited, state discarded")
}

// Sessions lists the sessions this instance runs, sorted.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown closes every session.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, id := range m.Sessions() {
		if err := m.Close(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
