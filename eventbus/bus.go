// Package eventbus carries execution events from business logic to the
// responses that stream them.
//
// A Bus is a per-execution publish/subscribe list with EventEmitter
// semantics: one listener may be registered many times, Off removes the most
// recent registration, Once registrations remove themselves before they run,
// and every dispatch iterates a snapshot so listeners may register or remove
// listeners (including themselves) without affecting the delivery in
// progress. Dispatch is synchronous and in registration order.
//
// Listener identity is interface equality. Pointer types always compare;
// ListenerFunc wraps a plain func in a pointer. A listener whose dynamic value
// is not comparable (a func or map type with a Notify method) may be
// registered, but Off never matches it; use RemoveAllListeners instead.
package eventbus

import (
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/a2a-server-go/a2a"
)

// Kind selects a listener list.
type Kind string

const (
	// KindEvent listeners receive every published event.
	KindEvent Kind = "event"
	// KindFinished listeners are notified once the execution is done. They
	// receive a nil event.
	KindFinished Kind = "finished"
)

// Listener receives bus notifications.
type Listener interface {
	Notify(ev a2a.Event)
}

type funcListener struct {
	fn func(a2a.Event)
}

func (l *funcListener) Notify(ev a2a.Event) { l.fn(ev) }

// ListenerFunc wraps fn in a new Listener. Each call returns a distinct
// identity; keep the result to Off it later.
func ListenerFunc(fn func(ev a2a.Event)) Listener {
	return &funcListener{fn: fn}
}

type registration struct {
	listener Listener
	once     bool
	fired    atomic.Bool
}

// Bus is an ExecutionEventBus. The zero value is ready to use.
type Bus struct {
	mu   sync.Mutex
	regs map[Kind][]*registration
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{}
}

// On registers l for kind.
func (b *Bus) On(kind Kind, l Listener) *Bus {
	b.add(kind, l, false)
	return b
}

// Once registers l for a single notification of kind.
func (b *Bus) Once(kind Kind, l Listener) *Bus {
	b.add(kind, l, true)
	return b
}

// Off removes the most recent registration of l for kind, whether it was
// made with On or Once. Earlier registrations of l stay active.
func (b *Bus) Off(kind Kind, l Listener) *Bus {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.regs[kind]
	for i := len(regs) - 1; i >= 0; i-- {
		if sameListener(regs[i].listener, l) {
			b.regs[kind] = slices.Delete(slices.Clone(regs), i, i+1)
			break
		}
	}
	return b
}

// RemoveAllListeners drops every registration of the given kinds, or of all
// kinds when none are given.
func (b *Bus) RemoveAllListeners(kinds ...Kind) *Bus {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(kinds) == 0 {
		b.regs = nil
		return b
	}
	for _, k := range kinds {
		delete(b.regs, k)
	}
	return b
}

// ListenerCount reports how many registrations kind currently has.
func (b *Bus) ListenerCount(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.regs[kind])
}

// Publish delivers ev to the event listeners.
func (b *Bus) Publish(ev a2a.Event) {
	b.dispatch(KindEvent, ev)
}

// Finished notifies the finished listeners.
func (b *Bus) Finished() {
	b.dispatch(KindFinished, nil)
}

func (b *Bus) add(kind Kind, l Listener, once bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.regs == nil {
		b.regs = make(map[Kind][]*registration)
	}
	// Append to a fresh slice so snapshots held by running dispatches are
	// never written through.
	b.regs[kind] = append(slices.Clip(b.regs[kind]), &registration{listener: l, once: once})
}

func (b *Bus) remove(kind Kind, r *registration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.regs[kind]
	if i := slices.Index(regs, r); i >= 0 {
		b.regs[kind] = slices.Delete(slices.Clone(regs), i, i+1)
	}
}

// sameListener is == for listeners without the runtime panic on
// non-comparable dynamic values.
func sameListener(a, b Listener) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() || !va.Comparable() {
		return false
	}
	return a == b
}

func (b *Bus) dispatch(kind Kind, ev a2a.Event) {
	b.mu.Lock()
	snapshot := b.regs[kind]
	b.mu.Unlock()

	for _, r := range snapshot {
		if r.once {
			if !r.fired.CompareAndSwap(false, true) {
				continue
			}
			b.remove(kind, r)
		}
		r.listener.Notify(ev)
	}
}
