// Package relay carries verification results from the API process to
// the bot process. The mailbox is a bounded FIFO queue: producers
// publish over HTTP, the consumer drains it on a fixed interval. When
// the queue is full the oldest unconsumed result is evicted, so a slow
// consumer loses the oldest results rather than growing without bound.
package relay

import (
	"sync"

	"nftgate/internal/domain"
	"nftgate/internal/observability"
)

// DefaultCapacity bounds the mailbox when no explicit capacity is given.
const DefaultCapacity = 16

// Mailbox is a thread-safe bounded FIFO of verification results.
type Mailbox struct {
	mu       sync.Mutex
	capacity int
	queue    []domain.VerificationResult
}

// NewMailbox creates a mailbox holding at most capacity results.
// Non-positive capacities fall back to DefaultCapacity.
func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Mailbox{capacity: capacity}
}

// Publish enqueues a result, evicting the oldest unconsumed entry when
// the mailbox is full.
func (m *Mailbox) Publish(res domain.VerificationResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == m.capacity {
		m.queue = m.queue[1:]
		observability.RecordRelayEviction()
	}
	m.queue = append(m.queue, res)
	observability.SetRelayDepth(len(m.queue))
}

// Poll removes and returns the oldest result, reporting false when the
// mailbox is empty.
func (m *Mailbox) Poll() (domain.VerificationResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return domain.VerificationResult{}, false
	}
	res := m.queue[0]
	m.queue = m.queue[1:]
	observability.SetRelayDepth(len(m.queue))
	return res, true
}

// Peek returns the oldest result without removing it.
func (m *Mailbox) Peek() (domain.VerificationResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return domain.VerificationResult{}, false
	}
	return m.queue[0], true
}

// Clear drains the mailbox and returns the number of discarded results.
func (m *Mailbox) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.queue)
	m.queue = nil
	observability.SetRelayDepth(0)
	return n
}

// Len reports the number of unconsumed results.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
