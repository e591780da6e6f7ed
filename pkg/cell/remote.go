package cell

// RemoteBinding connects a Remote to the system that owns its value.
// Every field is optional.
type RemoteBinding[T any] struct {
	// Setup starts a subscription when the cell gains its first listener.
	// The subscription delivers values with ReceiveFromStream.
	Setup func(r *Remote[T])

	// Cleanup stops the subscription when the cell loses its last listener.
	Cleanup func(r *Remote[T])

	// Push sends a local write to the owner. The cell's value only changes
	// once the owner acknowledges through ReceiveFromStream.
	Push func(v T, r *Remote[T])

	// Pull requests the value once. The answer arrives through
	// ReceiveFromOnce, ReceiveFromStream or FailFetch, on any goroutine.
	Pull func(r *Remote[T])
}

// fetchCycle is one outstanding acquisition shared by every waiter.
type fetchCycle[T any] struct {
	future  *Future[T]
	waiters int
	pulled  bool
}

// Remote is a cell whose value lives elsewhere and is acquired on demand.
//
// While it has listeners the value arrives through a subscription started
// by Setup. Without listeners, Get opens a single fetch cycle and every
// concurrent Get joins it.
type Remote[T any] struct {
	*Cell[T]

	binding RemoteBinding[T]

	// guarded by Cell.mu
	hasValue bool
	ordering bool
	cycle    *fetchCycle[T]
}

// NewRemote creates a remote cell bound to b.
func NewRemote[T any](b RemoteBinding[T], opts ...Option) *Remote[T] {
	r := &Remote[T]{
		Cell:    newCell[T](KindRemote, opts),
		binding: b,
	}
	r.self = r
	r.demand = r.onDemand
	return r
}

// WithLimiter installs fn and returns the remote cell for chaining.
func (r *Remote[T]) WithLimiter(fn Limiter[T]) *Remote[T] {
	_ = r.SetLimiter(fn)
	return r
}

// Get returns the value when the subscription has delivered one. Otherwise
// it joins the current fetch cycle, opening one and pulling if needed.
func (r *Remote[T]) Get() Result[T] {
	r.mu.Lock()
	if r.hasValue {
		v := r.value
		r.mu.Unlock()
		return Ready(v)
	}
	if r.cycle == nil {
		// Recorded before the cycle is visible to a goroutine that could
		// settle it.
		r.inst.FetchStarted(r.info)
		r.cycle = &fetchCycle[T]{future: NewFuture[T]()}
	}
	cycle := r.cycle
	cycle.waiters++
	pull := !cycle.pulled && !r.ordering
	if pull {
		cycle.pulled = true
	}
	r.mu.Unlock()

	if pull {
		r.pull()
	}
	return Pending(cycle.future)
}

// Set writes v. See SetMaybe.
func (r *Remote[T]) Set(v T) {
	r.SetMaybe(Some(v))
}

// SetMaybe applies the limiter and, when the result differs from the cached
// value, hands it to Push.
func (r *Remote[T]) SetMaybe(m Maybe[T]) {
	v, ok := r.limit(m)
	if !ok || !r.Compare(v) {
		return
	}
	if r.binding.Push == nil {
		return
	}
	r.guard(codeBindingPanic, ErrBindingPanic, func() { r.binding.Push(v, r) })
}

// ReceiveFromStream delivers a value from the subscription. A value equal
// to the one already held is ignored. The pending fetch cycle, if any,
// resolves with v. Listeners are notified only while the cell is demanded;
// without listeners v is cached but Get still fetches.
func (r *Remote[T]) ReceiveFromStream(v T) {
	r.mu.Lock()
	if r.hasValue && r.equal(r.value, v) {
		r.mu.Unlock()
		return
	}
	r.value = v
	r.defined = true
	r.ordering = false
	cycle := r.cycle
	r.cycle = nil

	notify := r.refs > 0
	var gen uint64
	var entries []listenerEntry[T]
	if notify {
		r.hasValue = true
		gen, entries = r.snapshotLocked()
	}
	r.mu.Unlock()

	if notify {
		r.deliver(v, gen, entries)
	}
	if cycle != nil {
		r.settle(cycle, v, nil)
	}
}

// ReceiveFromOnce delivers the answer to a Pull. Every waiter of the
// current cycle resolves with v; the cell itself is not updated.
func (r *Remote[T]) ReceiveFromOnce(v T) {
	r.mu.Lock()
	cycle := r.cycle
	r.cycle = nil
	r.mu.Unlock()

	if cycle != nil {
		r.settle(cycle, v, nil)
	}
}

// FailFetch rejects every waiter of the current cycle with err. The next
// Get starts a new cycle.
func (r *Remote[T]) FailFetch(err error) {
	if err == nil {
		err = ErrNotFetched
	}
	r.mu.Lock()
	cycle := r.cycle
	r.cycle = nil
	r.mu.Unlock()

	if cycle == nil {
		return
	}
	r.report(codeFetchFailed, err)
	var zero T
	r.settle(cycle, zero, err)
}

// HasValue reports whether the subscription has delivered a value.
func (r *Remote[T]) HasValue() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasValue
}

// Fetching reports whether a fetch cycle is outstanding.
func (r *Remote[T]) Fetching() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cycle != nil
}

func (r *Remote[T]) settle(cycle *fetchCycle[T], v T, err error) {
	r.mu.Lock()
	waiters := cycle.waiters
	r.mu.Unlock()

	r.inst.FetchSettled(r.info, waiters, err)
	if err != nil {
		cycle.future.Reject(err)
	} else {
		cycle.future.Resolve(v)
	}
}

// pull asks the binding for the value. Without a Pull binding nothing can
// answer, so the cycle is rejected.
func (r *Remote[T]) pull() {
	if r.binding.Pull == nil {
		r.FailFetch(ErrNoPull)
		return
	}
	if r.guard(codeBindingPanic, ErrBindingPanic, func() { r.binding.Pull(r) }) {
		r.FailFetch(ErrBindingPanic)
	}
}

func (r *Remote[T]) onDemand(active bool) {
	if active {
		r.mu.Lock()
		r.ordering = true
		r.mu.Unlock()
		if r.binding.Setup != nil {
			r.binding.Setup(r)
		}
		return
	}

	if r.binding.Cleanup != nil {
		r.binding.Cleanup(r)
	}

	r.mu.Lock()
	r.hasValue = false
	r.ordering = false
	// A cycle opened while the subscription was expected to answer would
	// otherwise never settle.
	var handoff bool
	if r.cycle != nil && !r.cycle.pulled {
		r.cycle.pulled = true
		handoff = true
	}
	r.mu.Unlock()

	if handoff {
		r.pull()
	}
}
