package journal

import (
	"context"
	"sync"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
)

// MemoryStore keeps events in process memory. When limit is positive each
// session keeps only its newest limit events.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]domain.Event
	limit  int
}

func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{events: make(map[string][]domain.Event), limit: limit}
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, e domain.Event) error {
	if sessionID == "" {
		return ErrEmptySession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.events[sessionID], e)
	if s.limit > 0 && len(list) > s.limit {
		list = append([]domain.Event(nil), list[len(list)-s.limit:]...)
	}
	s.events[sessionID] = list
	return nil
}

func (s *MemoryStore) List(ctx context.Context, sessionID string) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.events[sessionID]
	out := make([]domain.Event, len(src))
	copy(out, src)
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.events, sessionID)
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
