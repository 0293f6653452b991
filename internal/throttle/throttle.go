// Package throttle coalesces bursts of calls into at most one execution
// per window.
//
// The throttle does no scheduling of its own. Submit says whether to fire
// now or how long to wait; the caller arranges a timer and calls Expire
// with the generation it was given. Only the latest generation can fire,
// so a burst collapses to its most recent arguments.
package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of a Submit.
type Decision[T any] struct {
	// Fire is true when the call should execute immediately with Args.
	Fire bool
	Args T
	// Delay is how long to wait before calling Expire with Gen.
	Delay time.Duration
	Gen   uint64
}

// Throttle is a trailing-edge throttle over argument values of type T.
// It is safe for concurrent use.
type Throttle[T any] struct {
	window time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
	gen     uint64
	pending *T
}

// New creates a throttle allowing one execution per window.
func New[T any](window time.Duration) *Throttle[T] {
	return &Throttle[T]{
		window:  window,
		limiter: rate.NewLimiter(rate.Every(window), 1),
	}
}

// Window returns the configured window.
func (t *Throttle[T]) Window() time.Duration {
	return t.window
}

// Submit records a call at now. If the window has elapsed since the last
// execution the call fires immediately; otherwise args replace any pending
// arguments and the caller should call Expire after Delay.
//
// Delay is a full window counted from this submit, not the time left since
// the last execution. A burst at 0, 100 and 200ms therefore fires its last
// call at 800ms, while a call at 700ms after a single execution at 0 finds
// the window elapsed and fires at once.
func (t *Throttle[T]) Submit(now time.Time, args T) Decision[T] {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	if t.window <= 0 || t.limiter.AllowN(now, 1) {
		t.pending = nil
		return Decision[T]{Fire: true, Args: args, Gen: t.gen}
	}
	t.pending = &args
	return Decision[T]{Args: args, Delay: t.window, Gen: t.gen}
}

// Expire fires the pending call if gen is still the latest submission.
func (t *Throttle[T]) Expire(now time.Time, gen uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	if gen != t.gen || t.pending == nil {
		return zero, false
	}
	args := *t.pending
	t.pending = nil
	t.limiter.ReserveN(now, 1)
	return args, true
}

// Pending reports whether a deferred call is waiting.
func (t *Throttle[T]) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// Reset drops any pending call and forgets the last execution.
func (t *Throttle[T]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	t.pending = nil
	t.limiter = rate.NewLimiter(rate.Every(t.window), 1)
}
