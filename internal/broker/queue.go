package broker

import (
	"sync"

	"github.com/goldenagents/gafed/internal/session"
)

// messageQueue is an unbounded FIFO of source messages.
//
// Transports enqueue from any goroutine while the broker's Run loop
// dequeues. The buffered signal channel lets Run wait on the queue and a
// context at the same time; closing the queue closes the channel, which
// wakes the loop for good.
type messageQueue struct {
	mu       sync.Mutex
	messages []session.Message
	closed   bool
	signal   chan struct{}
}

func newMessageQueue() *messageQueue {
	return &messageQueue{
		messages: make([]session.Message, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue appends m. It returns false once the queue is closed.
func (q *messageQueue) Enqueue(m session.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.messages = append(q.messages, m)

	// A pending signal already covers this message.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front message without blocking.
func (q *messageQueue) TryDequeue() (session.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.messages) == 0 {
		return nil, false
	}
	m := q.messages[0]
	// Release the partial graph held by the slot.
	q.messages[0] = nil
	if len(q.messages) == 1 {
		q.messages = q.messages[:0]
	} else {
		q.messages = q.messages[1:]
	}
	return m, true
}

// Wait returns a channel that fires when messages may be available.
func (q *messageQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued messages.
func (q *messageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Drained reports whether the queue is closed and empty.
func (q *messageQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.messages) == 0
}

// Close rejects further messages and wakes the waiting loop.
func (q *messageQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
