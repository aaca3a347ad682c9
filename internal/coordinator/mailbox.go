package coordinator

import "sync"

// mailbox is an unbounded FIFO queue with a single consumer.
// push never blocks; the consumer waits on ready() and then drains.
type mailbox struct {
	mu     sync.Mutex
	queue  []command
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

// push enqueues cmd. It returns false once the mailbox is closed.
func (m *mailbox) push(cmd command) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, cmd)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

func (m *mailbox) ready() <-chan struct{} {
	return m.signal
}

// drain takes every queued command in arrival order.
func (m *mailbox) drain() []command {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	m.mu.Unlock()
}
