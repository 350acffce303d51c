// Package debounce coalesces bursts of values into a single trailing call.
//
// A Debouncer is a scoped resource: Close flushes the pending value
// synchronously and rejects further triggers, so no accepted value is lost
// on teardown.
package debounce

import (
	"sync"
	"time"

	"github.com/aretw0/contractflow/pkg/clock"
)

// Option configures a Debouncer.
type Option func(*config)

type config struct {
	clock clock.Clock
}

// WithClock sets the clock used to schedule the trailing call.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// Debouncer calls fn with the latest triggered value once delay has passed
// without a new trigger. Calls to fn never overlap and run in the order the
// values were taken.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(T)
	clock clock.Clock

	run sync.Mutex // held while fn runs

	mu         sync.Mutex
	timer      clock.Timer
	generation uint64
	pending    bool
	value      T
	closed     bool
}

// New creates a Debouncer.
func New[T any](delay time.Duration, fn func(T), opts ...Option) *Debouncer[T] {
	cfg := config{clock: clock.Real()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Debouncer[T]{delay: delay, fn: fn, clock: cfg.clock}
}

// Trigger records v as the latest value and restarts the delay. It reports
// false once the debouncer is closed.
func (d *Debouncer[T]) Trigger(v T) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	gen := d.generation
	d.value = v
	d.pending = true
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
	return true
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.run.Lock()
	defer d.run.Unlock()

	d.mu.Lock()
	if !d.pending || gen != d.generation {
		d.mu.Unlock()
		return
	}
	v := d.take()
	d.mu.Unlock()

	d.fn(v)
}

// take clears the pending value. d.mu must be held.
func (d *Debouncer[T]) take() T {
	v := d.value
	var zero T
	d.value = zero
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return v
}

// Flush runs the pending value now, on the calling goroutine. It reports
// whether there was anything to flush.
func (d *Debouncer[T]) Flush() bool {
	d.run.Lock()
	defer d.run.Unlock()

	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	v := d.take()
	d.mu.Unlock()

	d.fn(v)
	return true
}

// Cancel drops the pending value without calling fn.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending {
		d.take()
	}
}

// Pending reports whether a value is waiting for its trailing call.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Close flushes the pending value and stops accepting triggers. It waits for
// an in-flight call to finish.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Flush()
}
