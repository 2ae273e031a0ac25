package eventbus

import (
	"context"
	"io"
	"sync"

	"github.com/ggoodman/a2a-server-go/a2a"
	"github.com/ggoodman/a2a-server-go/stream"
)

// Queue buffers the events of one Bus and exposes them as a stream.Source.
// It stops after a final event (see a2a.IsFinal) or when the bus reports
// finished. Publishers never block on a Queue.
type Queue struct {
	bus      *Bus
	onEvent  Listener
	onFinish Listener

	mu         sync.Mutex
	items      []a2a.Event
	done       bool
	closed     bool
	wake       chan struct{}
	detachOnce sync.Once
}

// NewQueue subscribes a new Queue to bus.
func NewQueue(bus *Bus) *Queue {
	q := &Queue{bus: bus, wake: make(chan struct{}, 1)}
	q.onEvent = ListenerFunc(q.push)
	q.onFinish = ListenerFunc(func(a2a.Event) { q.finish() })
	bus.On(KindEvent, q.onEvent)
	bus.On(KindFinished, q.onFinish)
	return q
}

func (q *Queue) push(ev a2a.Event) {
	q.mu.Lock()
	if q.done {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, ev)
	if a2a.IsFinal(ev) {
		q.done = true
	}
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) finish() {
	q.mu.Lock()
	q.done = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Next returns the next buffered event, waiting for one if necessary. It
// returns io.EOF once the execution is over and the buffer is drained.
func (q *Queue) Next(ctx context.Context) (any, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, io.EOF
		}
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, nil
		}
		if q.done {
			q.mu.Unlock()
			q.detach()
			return nil, io.EOF
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close unsubscribes from the bus and discards buffered events.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	q.detach()
	q.signal()
	return nil
}

func (q *Queue) detach() {
	q.detachOnce.Do(func() {
		q.bus.Off(KindEvent, q.onEvent)
		q.bus.Off(KindFinished, q.onFinish)
	})
}

var _ stream.Source = (*Queue)(nil)
