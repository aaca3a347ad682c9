package coordinator

import (
	"sync"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
)

// Subscriber receives committed snapshots.
// Deliver must not block; it returns false when the snapshot was dropped.
type Subscriber interface {
	ID() string
	Deliver(snap domain.Snapshot) bool
}

// Closer is implemented by subscribers that want to know when the
// coordinator stops. Closed is called once from the exiting worker and must
// not block.
type Closer interface {
	Closed()
}

// ChannelSubscriber buffers snapshots on a channel and drops when full.
type ChannelSubscriber struct {
	id string
	ch chan domain.Snapshot
}

// NewChannelSubscriber creates a subscriber with the given buffer size.
func NewChannelSubscriber(id string, buffer int) *ChannelSubscriber {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSubscriber{id: id, ch: make(chan domain.Snapshot, buffer)}
}

func (s *ChannelSubscriber) ID() string { return s.id }

// C returns the receive side of the buffer. It is never closed.
func (s *ChannelSubscriber) C() <-chan domain.Snapshot { return s.ch }

func (s *ChannelSubscriber) Deliver(snap domain.Snapshot) bool {
	select {
	case s.ch <- snap:
		return true
	default:
		return false
	}
}

// subscriberSet is safe for concurrent add/remove while the worker broadcasts.
type subscriberSet struct {
	mu   sync.RWMutex
	subs map[string]Subscriber
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[string]Subscriber)}
}

func (s *subscriberSet) add(sub Subscriber) {
	s.mu.Lock()
	s.subs[sub.ID()] = sub
	s.mu.Unlock()
}

func (s *subscriberSet) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[id]; !ok {
		return false
	}
	delete(s.subs, id)
	return true
}

func (s *subscriberSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *subscriberSet) list() []Subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out
}

// broadcast delivers snap to every subscriber and returns how many dropped it.
func (s *subscriberSet) broadcast(snap domain.Snapshot) int {
	dropped := 0
	for _, sub := range s.list() {
		if !deliver(sub, snap) {
			dropped++
		}
	}
	return dropped
}

// deliver isolates the worker from a panicking subscriber.
func deliver(sub Subscriber, snap domain.Snapshot) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return sub.Deliver(snap)
}
