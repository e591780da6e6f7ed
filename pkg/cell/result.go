package cell

import (
	"context"
	"sync"
)

// Future is a value that becomes available later. It settles exactly once,
// either with a value or with an error. Callbacks registered after it
// settled run immediately on the registering goroutine.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     T
	err       error
	callbacks []func(T, error)
}

// NewFuture creates an unsettled future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved creates a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(v)
	return f
}

// Resolve settles the future with v. Returns false if it was already settled.
func (f *Future[T]) Resolve(v T) bool {
	return f.settle(v, nil)
}

// Reject settles the future with err. Returns false if it was already settled.
func (f *Future[T]) Reject(err error) bool {
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.value = v
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	// Callbacks run in registration order, outside the lock
	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// Done returns a channel closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Poll returns the settled value and error without blocking.
// settled is false while the future is still pending.
func (f *Future[T]) Poll() (value T, err error, settled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, f.settled
}

// OnSettle registers fn to run once the future settles.
func (f *Future[T]) OnSettle(fn func(T, error)) {
	f.mu.Lock()
	if f.settled {
		v, err := f.value, f.err
		f.mu.Unlock()
		fn(v, err)
		return
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}

// Then registers fn to run once the future resolves successfully.
func (f *Future[T]) Then(fn func(T)) {
	f.OnSettle(func(v T, err error) {
		if err == nil {
			fn(v)
		}
	})
}

// Result is what every cell read returns: either a ready value (possibly
// empty, for cells created without one) or a pending future.
type Result[T any] struct {
	value   T
	defined bool
	future  *Future[T]
}

// Ready returns a settled result holding v.
func Ready[T any](v T) Result[T] {
	return Result[T]{value: v, defined: true}
}

// Empty returns a settled result without a value.
func Empty[T any]() Result[T] {
	return Result[T]{}
}

// Pending returns a result that settles with f.
func Pending[T any](f *Future[T]) Result[T] {
	return Result[T]{future: f}
}

// IsPending reports whether the result is still waiting on a future.
func (r Result[T]) IsPending() bool {
	return r.future != nil
}

// IsEmpty reports whether the result is settled without a value.
func (r Result[T]) IsEmpty() bool {
	return r.future == nil && !r.defined
}

// Value returns the ready value. ok is false for pending and empty results.
func (r Result[T]) Value() (value T, ok bool) {
	if r.future != nil {
		var zero T
		return zero, false
	}
	return r.value, r.defined
}

// Future returns the pending future, or a resolved one for ready and empty
// results.
func (r Result[T]) Future() *Future[T] {
	if r.future != nil {
		return r.future
	}
	return Resolved(r.value)
}

// Await returns the value, blocking on the future when pending.
func (r Result[T]) Await(ctx context.Context) (T, error) {
	if r.future != nil {
		return r.future.Await(ctx)
	}
	return r.value, nil
}

// OnSettle runs fn with the value now, or when the pending future settles.
// Empty results run fn with the zero value.
func (r Result[T]) OnSettle(fn func(T, error)) {
	if r.future != nil {
		r.future.OnSettle(fn)
		return
	}
	fn(r.value, nil)
}

// Then runs fn with the value now, or when the pending future resolves.
func (r Result[T]) Then(fn func(T)) {
	r.OnSettle(func(v T, err error) {
		if err == nil {
			fn(v)
		}
	})
}

// Map converts a result with fn, preserving pending and empty states.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.future == nil {
		if !r.defined {
			return Empty[U]()
		}
		return Ready(fn(r.value))
	}
	out := NewFuture[U]()
	r.future.OnSettle(func(v T, err error) {
		if err != nil {
			out.Reject(err)
			return
		}
		out.Resolve(fn(v))
	})
	return Pending(out)
}
