// Package stream drains an event Source into a host-supplied Consumer as
// Server-Sent Events.
//
// ProcessStream is the single streaming algorithm shared by every transport.
// It pulls the first item before anything is written so that a failure at
// that point can still be reported as an ordinary response with a status
// code (Result.EarlyError). Once a frame has been written the response is
// committed: a later failure becomes one terminal "event: error" frame and
// the stream ends. When the consumer stops being writable the driver ends
// the stream without writing or pulling again. Consumers that implement
// Notifier also release a pull that is blocked on an idle Source.
//
// Options.OnStreamStart runs once, right before the first frame is written.
// Hosts use it to commit status and headers lazily.
//
// # Backpressure
//
// The driver awaits every Consumer.Write before pulling the next item, so
// backpressure reaches the Source only as far as the consumer provides it.
// WriterConsumer blocks on the underlying socket write and therefore
// propagates it end to end. ChannelConsumer blocks only once its buffer is
// full; up to that many frames are accepted regardless of how fast the
// reader drains them.
package stream
