package stream

import (
	"context"
	"io"
	"iter"
	"sync"
)

// Source is a pull-based sequence of protocol payloads. Next returns io.EOF
// once the sequence is exhausted. Close releases the producer; it is safe to
// call more than once and after io.EOF.
type Source interface {
	Next(ctx context.Context) (any, error)
	Close() error
}

// FromSlice returns a Source yielding items in order.
func FromSlice[T any](items []T) Source {
	return &sliceSource[T]{items: items}
}

type sliceSource[T any] struct {
	mu    sync.Mutex
	items []T
}

func (s *sliceSource[T]) Next(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, nil
}

func (s *sliceSource[T]) Close() error {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	return nil
}

// FromChannel returns a Source reading from ch until it is closed.
func FromChannel[T any](ch <-chan T) Source {
	return channelSource[T]{ch: ch}
}

type channelSource[T any] struct {
	ch <-chan T
}

func (s channelSource[T]) Next(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case item, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return item, nil
	}
}

func (channelSource[T]) Close() error { return nil }

// FromSeq returns a Source over a push iterator. The first non-nil error
// the iterator yields is returned from Next and ends the sequence. Close
// stops the iterator.
func FromSeq[T any](seq iter.Seq2[T, error]) Source {
	next, stop := iter.Pull2(seq)
	return &seqSource[T]{next: next, stop: stop}
}

type seqSource[T any] struct {
	mu   sync.Mutex
	next func() (T, error, bool)
	stop func()
	done bool
}

func (s *seqSource[T]) Next(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, io.EOF
	}
	item, err, ok := s.next()
	if !ok {
		s.done = true
		return nil, io.EOF
	}
	if err != nil {
		s.done = true
		s.stop()
		return nil, err
	}
	return item, nil
}

func (s *seqSource[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.stop()
	return nil
}

// SourceFunc adapts a pull function to Source. Close is a no-op.
type SourceFunc func(ctx context.Context) (any, error)

func (f SourceFunc) Next(ctx context.Context) (any, error) { return f(ctx) }
func (f SourceFunc) Close() error                          { return nil }
