// Package bridge carries update events from module controllers to the
// single-threaded UI loop. Controllers call Send from any goroutine and
// never block; the UI loop waits on Notify and pulls batches with
// Drain. Ordering is FIFO, so two updates from the same controller
// apply in emit order.
package bridge

import (
	"io"
	"log/slog"
	"sync"
)

// DefaultCapacity bounds the pending queue. A stalled UI loop costs the
// oldest updates, never memory.
const DefaultCapacity = 1024

// DefaultDrain is how many events the UI loop applies per iteration
// before yielding back to input handling.
const DefaultDrain = 64

// Event is one update from a controller, addressed by widget ID.
type Event struct {
	Widget  string
	Payload any
}

// Bridge is the many-producer single-consumer queue.
type Bridge struct {
	mu      sync.Mutex
	queue   []Event
	cap     int
	closed  bool
	dropped uint64
	notify  chan struct{}
	logger  *slog.Logger
}

// New builds a bridge. capacity <= 0 uses DefaultCapacity; logger may
// be nil.
func New(capacity int, logger *slog.Logger) *Bridge {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bridge{
		cap:    capacity,
		notify: make(chan struct{}, 1),
		logger: logger,
	}
}

// Send enqueues an event. It never blocks: when the queue is full the
// oldest event is dropped, and after Close the call is a no-op.
func (b *Bridge) Send(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if len(b.queue) >= b.cap {
		n := copy(b.queue, b.queue[1:])
		b.queue = b.queue[:n]
		b.dropped++
		b.logger.Debug("update queue full, dropped oldest", "widget", ev.Widget)
	}
	b.queue = append(b.queue, ev)
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Notify signals when events are waiting. The channel holds at most one
// pending wake-up; Drain re-arms it when it leaves events behind.
func (b *Bridge) Notify() <-chan struct{} {
	return b.notify
}

// Drain removes and returns up to max events. max <= 0 uses
// DefaultDrain. When events remain after the batch, the notify channel
// is re-signalled so the consumer comes back without a new Send.
func (b *Bridge) Drain(max int) []Event {
	if max <= 0 {
		max = DefaultDrain
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.queue)
	if n == 0 {
		return nil
	}
	if n > max {
		n = max
	}
	out := make([]Event, n)
	copy(out, b.queue)
	m := copy(b.queue, b.queue[n:])
	b.queue = b.queue[:m]
	if m > 0 {
		select {
		case b.notify <- struct{}{}:
		default:
		}
	}
	return out
}

// Len reports the pending event count.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Dropped reports how many events overflow has discarded.
func (b *Bridge) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close makes every later Send a no-op and discards pending events.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.queue = nil
}
