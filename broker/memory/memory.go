// Package memory provides an in-memory implementation of the broker.Broker
// interface. It is suitable for single-node deployments and tests.
package memory

import (
	"context"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/a2a-server-go/broker"
)

// Broker implements broker.Broker with per-namespace message logs held in
// memory until Cleanup. Subscribers read the log at their own pace, so slow
// readers never lose messages.
type Broker struct {
	mu           sync.Mutex
	namespaces   map[string]*namespace
	eventCounter atomic.Int64
}

type namespace struct {
	mu       sync.Mutex
	messages []broker.Envelope
	// changed is closed and replaced whenever messages grows or the
	// namespace is closed.
	changed chan struct{}
	closed  bool
}

type subscription struct {
	ns        *namespace
	next      int
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

// New creates a new memory-based broker instance.
func New() *Broker {
	return &Broker{
		namespaces: make(map[string]*namespace),
	}
}

func (b *Broker) namespace(name string) *namespace {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns, ok := b.namespaces[name]
	if !ok {
		ns = &namespace{changed: make(chan struct{})}
		b.namespaces[name] = ns
	}
	return ns
}

// Publish implements broker.Broker.Publish
func (b *Broker) Publish(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ns := b.namespace(name)

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.closed {
		return "", broker.ErrClosed
	}

	eventID := strconv.FormatInt(b.eventCounter.Add(1), 10)
	ns.messages = append(ns.messages, broker.Envelope{
		ID:   eventID,
		Data: append([]byte(nil), data...),
	})
	close(ns.changed)
	ns.changed = make(chan struct{})

	return eventID, nil
}

// Subscribe implements broker.Broker.Subscribe. An unknown lastEventID
// resumes from the next published message.
func (b *Broker) Subscribe(ctx context.Context, name string, lastEventID string) (broker.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ns := b.namespace(name)

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.closed {
		return nil, broker.ErrClosed
	}

	sub := &subscription{ns: ns, next: len(ns.messages), done: make(chan struct{})}
	if lastEventID != "" {
		for i, msg := range ns.messages {
			if msg.ID == lastEventID {
				sub.next = i + 1
				break
			}
		}
	}
	return sub, nil
}

// Cleanup implements broker.Broker.Cleanup
func (b *Broker) Cleanup(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	ns, ok := b.namespaces[name]
	delete(b.namespaces, name)
	b.mu.Unlock()

	if !ok {
		return nil
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.closed = true
	ns.messages = nil
	close(ns.changed)

	return nil
}

// Next implements broker.Stream.Next
func (s *subscription) Next(ctx context.Context) (broker.Envelope, error) {
	for {
		if s.closed.Load() {
			return broker.Envelope{}, broker.ErrClosed
		}

		s.ns.mu.Lock()
		if s.ns.closed {
			s.ns.mu.Unlock()
			return broker.Envelope{}, io.EOF
		}
		if s.next < len(s.ns.messages) {
			msg := s.ns.messages[s.next]
			s.next++
			s.ns.mu.Unlock()
			return msg, nil
		}
		changed := s.ns.changed
		s.ns.mu.Unlock()

		select {
		case <-changed:
		case <-s.done:
		case <-ctx.Done():
			return broker.Envelope{}, ctx.Err()
		}
	}
}

// Close implements broker.Stream.Close
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
	return nil
}

// Compile-time interface checks
var (
	_ broker.Broker = (*Broker)(nil)
	_ broker.Stream = (*subscription)(nil)
)
