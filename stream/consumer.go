package stream

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrNotWritable is returned by Consumer.Write once the consumer has ended
// or its client has gone away.
var ErrNotWritable = errors.New("stream: consumer is not writable")

// Consumer is the host side of a streaming response. Write delivers one
// frame. End finishes the response and is idempotent. IsWritable reports
// false once the client is gone or End was called.
type Consumer interface {
	Write(ctx context.Context, ev Event) error
	End() error
	IsWritable() bool
}

// WriterConsumer writes frames to an io.Writer, flushing after each frame
// when the writer supports it. Writes block on the writer, so a socket
// writer exerts backpressure on the driver.
type WriterConsumer struct {
	ctx    context.Context
	cancel context.CancelFunc
	w      io.Writer
	onEnd  func()

	mu      sync.Mutex
	endOnce sync.Once
}

type flusher interface{ Flush() }

type flushErrorer interface{ Flush() error }

// NewWriterConsumer returns a consumer bound to ctx: once ctx is done the
// consumer is no longer writable. onEnd, if non-nil, runs once when End is
// first called.
func NewWriterConsumer(ctx context.Context, w io.Writer, onEnd func()) *WriterConsumer {
	ctx, cancel := context.WithCancel(ctx)
	return &WriterConsumer{ctx: ctx, cancel: cancel, w: w, onEnd: onEnd}
}

func (c *WriterConsumer) Write(ctx context.Context, ev Event) error {
	if !c.IsWritable() {
		return ErrNotWritable
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.Write(ev.Format()); err != nil {
		c.cancel()
		return err
	}
	switch f := c.w.(type) {
	case flushErrorer:
		if err := f.Flush(); err != nil {
			c.cancel()
			return err
		}
	case flusher:
		f.Flush()
	}
	return nil
}

func (c *WriterConsumer) End() error {
	c.endOnce.Do(func() {
		c.cancel()
		if c.onEnd != nil {
			c.onEnd()
		}
	})
	return nil
}

func (c *WriterConsumer) IsWritable() bool {
	return c.ctx.Err() == nil
}

// Done is closed when IsWritable turns false.
func (c *WriterConsumer) Done() <-chan struct{} { return c.ctx.Done() }

// ChannelConsumer enqueues frames on a buffered channel. It exists for hosts
// that hand frames to another goroutine (a pipe, a websocket pump, a test).
// Writes only block once the buffer is full. The reader calls Cancel when it
// stops consuming. End may be called from any goroutine.
type ChannelConsumer struct {
	ch   chan Event
	stop chan struct{}

	// Writers hold mu for reading while they may send on ch. End takes it
	// for writing before closing ch.
	mu       sync.RWMutex
	stopOnce sync.Once
	endOnce  sync.Once
}

// NewChannelConsumer returns a consumer whose channel holds up to buffer
// frames.
func NewChannelConsumer(buffer int) *ChannelConsumer {
	return &ChannelConsumer{
		ch:   make(chan Event, buffer),
		stop: make(chan struct{}),
	}
}

// Events returns the frame channel. It is closed by End.
func (c *ChannelConsumer) Events() <-chan Event { return c.ch }

// Cancel marks the consumer unwritable from the reading side.
func (c *ChannelConsumer) Cancel() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *ChannelConsumer) Write(ctx context.Context, ev Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.IsWritable() {
		return ErrNotWritable
	}
	select {
	case c.ch <- ev:
		return nil
	case <-c.stop:
		return ErrNotWritable
	case <-ctx.Done():
		return ctx.Err()
	}
}

// End unblocks any in-flight Write, then closes the frame channel.
func (c *ChannelConsumer) End() error {
	c.endOnce.Do(func() {
		c.Cancel()
		c.mu.Lock()
		close(c.ch)
		c.mu.Unlock()
	})
	return nil
}

func (c *ChannelConsumer) IsWritable() bool {
	select {
	case <-c.stop:
		return false
	default:
		return true
	}
}

// Done is closed once the consumer is canceled or ended.
func (c *ChannelConsumer) Done() <-chan struct{} { return c.stop }

var (
	_ Consumer = (*WriterConsumer)(nil)
	_ Consumer = (*ChannelConsumer)(nil)
	_ Notifier = (*WriterConsumer)(nil)
	_ Notifier = (*ChannelConsumer)(nil)
)
