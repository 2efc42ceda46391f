// Package subscription binds typed event handlers to a connection. A hook
// subscribes once and dispatches through a swappable cell, so replacing the
// handler never re-subscribes and never loses events in between.
package subscription

import (
	"sync"
	"sync/atomic"

	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/realtime"
)

// Source is where hooks attach; *realtime.Manager satisfies it.
type Source interface {
	On(kind events.Kind, h realtime.Handler) (realtime.Subscription, error)
	Off(kind events.Kind, subs ...realtime.Subscription) error
}

// Cell holds the latest value of a callback. Readers always see the most
// recent Store.
type Cell[T any] struct {
	p atomic.Pointer[T]
}

func NewCell[T any](v T) *Cell[T] {
	c := &Cell[T]{}
	c.Store(v)
	return c
}

func (c *Cell[T]) Load() T {
	if p := c.p.Load(); p != nil {
		return *p
	}
	var zero T
	return zero
}

func (c *Cell[T]) Store(v T) { c.p.Store(&v) }

type options struct {
	gate    func() bool
	enabled bool
}

type Option func(*options)

// WithGate drops events while gate returns false. It is checked for every
// event, not once at bind time.
func WithGate(gate func() bool) Option {
	return func(o *options) { o.gate = gate }
}

func WithEnabled(enabled bool) Option {
	return func(o *options) { o.enabled = enabled }
}

// Hook delivers events of one kind to the current handler.
type Hook[E events.Event] struct {
	src     Source
	kind    events.Kind
	handler Cell[func(E)]
	gate    func() bool

	mu       sync.Mutex
	sub      realtime.Subscription
	attached bool
	closed   bool
	err      error
}

// Bind subscribes h to events of type E. Hooks start enabled unless
// WithEnabled(false) is given.
func Bind[E events.Event](src Source, h func(E), opts ...Option) *Hook[E] {
	o := options{enabled: true}
	for _, opt := range opts {
		opt(&o)
	}

	var zero E
	hk := &Hook[E]{src: src, kind: zero.Kind(), gate: o.gate}
	hk.handler.Store(h)
	if o.enabled {
		hk.mu.Lock()
		hk.attachLocked()
		hk.mu.Unlock()
	}
	return hk
}

func (h *Hook[E]) Kind() events.Kind { return h.kind }

// Update swaps the handler in place.
func (h *Hook[E]) Update(fn func(E)) { h.handler.Store(fn) }

func (h *Hook[E]) SetEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if enabled {
		h.attachLocked()
	} else {
		h.detachLocked()
	}
}

// Err is the error of the last failed attach, if any.
func (h *Hook[E]) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Hook[E]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked()
	h.closed = true
}

func (h *Hook[E]) attachLocked() {
	if h.attached {
		return
	}
	sub, err := h.src.On(h.kind, h.dispatch)
	h.err = err
	if err != nil {
		return
	}
	h.sub = sub
	h.attached = true
}

func (h *Hook[E]) detachLocked() {
	if !h.attached {
		return
	}
	_ = h.src.Off(h.kind, h.sub)
	h.attached = false
}

func (h *Hook[E]) dispatch(e events.Event) {
	ev, ok := e.(E)
	if !ok {
		return
	}
	if h.gate != nil && !h.gate() {
		return
	}
	if fn := h.handler.Load(); fn != nil {
		fn(ev)
	}
}
