package cell

import (
	"slices"
	"sync"
)

// Diagnostic codes registered in internal/errors.
const (
	codeNilListener   = "C001"
	codeNilLimiter    = "C002"
	codeInvalidSource = "C003"
	codeNilReducer    = "C004"
	codeNilMapper     = "C005"
	codeInvalidTarget = "C006"
	codeListenerPanic = "C010"
	codeHookPanic     = "C020"
	codeBindingPanic  = "C021"
	codeFetchFailed   = "C030"
)

// Listener is called with the new value and the cell that changed.
type Listener[T any] func(value T, source Observable[T])

// Limiter gates and transforms writes. Returning ok=false vetoes the write.
type Limiter[T any] func(candidate T, source Observable[T]) (value T, ok bool)

// DemandHook is called with true when a cell gains its first listener and
// with false when it loses its last one.
type DemandHook[T any] func(active bool, source Observable[T])

// Handle identifies a registered listener. The zero Handle is never issued.
type Handle uint64

// Observable is the capability set shared by every cell variant.
type Observable[T any] interface {
	// Get returns the current value, or a pending result when the value
	// must be fetched or computed asynchronously.
	Get() Result[T]

	// Set writes v through the cell's limiter.
	Set(v T)

	// SetMaybe writes m through the cell's limiter. None is a no-op.
	SetMaybe(m Maybe[T])

	// Update re-notifies every listener with the unchanged value.
	Update()

	// Compare reports whether v differs from the current value.
	Compare(v T) bool

	// AddListener registers fn and returns its handle. With runImmediately,
	// fn is also called with the current value, or once a pending value
	// settles.
	AddListener(fn Listener[T], runImmediately bool) Handle

	// RemoveListener unregisters h and returns it.
	RemoveListener(h Handle) Handle

	// HasListeners reports whether any listener is registered.
	HasListeners() bool
}

type listenerEntry[T any] struct {
	handle Handle
	fn     Listener[T]
}

// Cell is an observable value container. Writes pass through a limiter and
// an equality check; listeners are notified in registration order.
//
// Cell is safe for concurrent use. Listeners, limiters and hooks run
// without the cell's lock held, so they may read and write the cell.
type Cell[T any] struct {
	info Info
	diag Diagnostics
	inst Instrumentation

	mu        sync.Mutex
	value     T
	defined   bool
	limiter   Limiter[T]
	equal     func(a, b T) bool
	listeners []listenerEntry[T]
	refs      int    // listeners plus adds in progress
	gen       uint64 // bumped on every notification round
	userHook  DemandHook[T]

	// active is the demand state last announced to the hooks. Only the
	// goroutine that set switching runs hooks; it loops until active
	// matches refs.
	active    bool
	switching bool

	// self is the outermost variant; it is handed to listeners and used for
	// immediate reads.
	self Observable[T]

	// demand is the variant's own reaction to demand transitions. It runs
	// before the user hook.
	demand func(active bool)
}

// New creates a cell holding initial. The limiter is not applied to it.
func New[T any](initial T, opts ...Option) *Cell[T] {
	c := newCell[T](KindCell, opts)
	c.value = initial
	c.defined = true
	return c
}

// NewEmpty creates a cell without a value.
func NewEmpty[T any](opts ...Option) *Cell[T] {
	return newCell[T](KindCell, opts)
}

func newCell[T any](kind Kind, opts []Option) *Cell[T] {
	info, diag, inst := applyOptions(kind, opts)
	c := &Cell[T]{
		info:  info,
		diag:  diag,
		inst:  inst,
		equal: defaultEquals[T],
	}
	c.self = c
	return c
}

// Info returns the cell's identity.
func (c *Cell[T]) Info() Info {
	return c.info
}

// ID returns the cell's unique ID.
func (c *Cell[T]) ID() uint64 {
	return c.info.ID
}

// Name returns the cell's name.
func (c *Cell[T]) Name() string {
	return c.info.Name
}

// Get returns the current value. It is never pending for a plain cell.
func (c *Cell[T]) Get() Result[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.defined {
		return Empty[T]()
	}
	return Ready(c.value)
}

// Peek returns the stored value without going through Get.
func (c *Cell[T]) Peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.defined
}

// Set writes v. See SetMaybe.
func (c *Cell[T]) Set(v T) {
	c.SetMaybe(Some(v))
}

// SetMaybe applies the limiter to m and, when the result is defined and
// differs from the current value, stores it and notifies listeners.
func (c *Cell[T]) SetMaybe(m Maybe[T]) {
	v, ok := c.limit(m)
	if !ok {
		return
	}
	c.commit(v)
}

// Update re-notifies every listener with the current value.
func (c *Cell[T]) Update() {
	c.mu.Lock()
	v := c.value
	gen, entries := c.snapshotLocked()
	c.mu.Unlock()
	c.deliver(v, gen, entries)
}

// Compare reports whether v differs from the current value. An empty cell
// differs from everything.
func (c *Cell[T]) Compare(v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.defined || !c.equal(c.value, v)
}

// SetLimiter installs fn as the write limiter. A nil fn is reported and the
// current limiter stays.
func (c *Cell[T]) SetLimiter(fn Limiter[T]) error {
	if fn == nil {
		return c.report(codeNilLimiter, ErrNilLimiter)
	}
	c.mu.Lock()
	c.limiter = fn
	c.mu.Unlock()
	return nil
}

// WithLimiter installs fn and returns the cell for chaining.
func (c *Cell[T]) WithLimiter(fn Limiter[T]) *Cell[T] {
	_ = c.SetLimiter(fn)
	return c
}

// WithEquals replaces the equality used by Compare and Set.
func (c *Cell[T]) WithEquals(fn func(a, b T) bool) *Cell[T] {
	if fn == nil {
		fn = defaultEquals[T]
	}
	c.mu.Lock()
	c.equal = fn
	c.mu.Unlock()
	return c
}

// OnDemandChanged installs a hook fired on the 0→1 and 1→0 listener
// transitions. Panics in the hook are recovered and reported.
func (c *Cell[T]) OnDemandChanged(fn DemandHook[T]) {
	c.mu.Lock()
	c.userHook = fn
	c.mu.Unlock()
}

// AddListener registers fn. A nil fn is reported and the zero Handle is
// returned. On the first listener the demand hooks fire before fn is
// appended.
func (c *Cell[T]) AddListener(fn Listener[T], runImmediately bool) Handle {
	if fn == nil {
		c.report(codeNilListener, ErrNilListener)
		return 0
	}
	h := Handle(nextID())

	c.mu.Lock()
	c.refs++
	c.mu.Unlock()

	c.syncDemand()

	c.mu.Lock()
	c.listeners = append(c.listeners, listenerEntry[T]{handle: h, fn: fn})
	gen := c.gen
	c.mu.Unlock()

	if runImmediately {
		c.runNow(h, fn, gen)
	}
	return h
}

// runNow calls fn with the current value. A pending value is delivered on
// settle unless a notification round reached fn first.
func (c *Cell[T]) runNow(h Handle, fn Listener[T], gen uint64) {
	r := c.self.Get()
	if r.IsEmpty() {
		return
	}
	if !r.IsPending() {
		v, _ := r.Value()
		c.call(fn, v)
		return
	}
	r.OnSettle(func(v T, err error) {
		if err != nil {
			return
		}
		c.mu.Lock()
		stale := c.gen != gen
		registered := slices.ContainsFunc(c.listeners, func(e listenerEntry[T]) bool {
			return e.handle == h
		})
		c.mu.Unlock()
		if stale || !registered {
			return
		}
		c.call(fn, v)
	})
}

// RemoveListener unregisters h. On the last listener the demand hooks fire
// with false. Unknown handles are ignored.
func (c *Cell[T]) RemoveListener(h Handle) Handle {
	c.mu.Lock()
	i := slices.IndexFunc(c.listeners, func(e listenerEntry[T]) bool {
		return e.handle == h
	})
	if i < 0 {
		c.mu.Unlock()
		return h
	}
	c.listeners = slices.Delete(c.listeners, i, i+1)
	c.refs--
	if c.refs == 0 {
		c.listeners = nil
	}
	c.mu.Unlock()

	c.syncDemand()
	return h
}

// HasListeners reports whether the cell is demanded.
func (c *Cell[T]) HasListeners() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs > 0
}

// ListenerCount returns the number of registered listeners.
func (c *Cell[T]) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// limit applies the limiter to m outside the lock.
func (c *Cell[T]) limit(m Maybe[T]) (T, bool) {
	v, ok := m.Get()
	if !ok {
		return v, false
	}
	c.mu.Lock()
	limiter := c.limiter
	c.mu.Unlock()
	if limiter == nil {
		return v, true
	}
	return limiter(v, c.self)
}

// commit stores v and notifies if it differs from the current value.
func (c *Cell[T]) commit(v T) {
	c.mu.Lock()
	if c.defined && c.equal(c.value, v) {
		c.mu.Unlock()
		return
	}
	c.value = v
	c.defined = true
	gen, entries := c.snapshotLocked()
	c.mu.Unlock()
	c.deliver(v, gen, entries)
}

// emit notifies listeners with v without storing it.
func (c *Cell[T]) emit(v T) {
	c.mu.Lock()
	gen, entries := c.snapshotLocked()
	c.mu.Unlock()
	c.deliver(v, gen, entries)
}

// snapshotLocked opens a notification round. c.mu must be held.
func (c *Cell[T]) snapshotLocked() (uint64, []listenerEntry[T]) {
	c.gen++
	return c.gen, slices.Clone(c.listeners)
}

// deliver calls each entry in order. A newer round started by a listener
// supersedes this one and the remaining entries are skipped.
func (c *Cell[T]) deliver(v T, gen uint64, entries []listenerEntry[T]) {
	if len(entries) == 0 {
		return
	}
	c.inst.Notified(c.info, len(entries))
	for i, e := range entries {
		if i > 0 && c.generation() != gen {
			return
		}
		c.call(e.fn, v)
	}
}

func (c *Cell[T]) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// call runs fn, recovering and reporting a panic.
func (c *Cell[T]) call(fn Listener[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			err := recovered(ErrListenerPanic, r)
			c.report(codeListenerPanic, err)
			c.inst.ListenerFailed(c.info, err)
		}
	}()
	fn(v, c.self)
}

// syncDemand fires demand transitions until the announced state matches
// the listener count. A transition that races a running hook is picked up
// by the goroutine running it, so hooks never overlap or run out of order.
func (c *Cell[T]) syncDemand() {
	c.mu.Lock()
	if c.switching {
		c.mu.Unlock()
		return
	}
	c.switching = true
	for c.active != (c.refs > 0) {
		c.active = !c.active
		active := c.active
		c.mu.Unlock()
		c.demandChanged(active)
		c.mu.Lock()
	}
	c.switching = false
	c.mu.Unlock()
}

func (c *Cell[T]) demandChanged(active bool) {
	c.inst.DemandChanged(c.info, active)

	c.mu.Lock()
	hook := c.userHook
	c.mu.Unlock()

	if c.demand != nil {
		c.guard(codeHookPanic, ErrHookPanic, func() { c.demand(active) })
	}
	if hook != nil {
		c.guard(codeHookPanic, ErrHookPanic, func() { hook(active, c.self) })
	}
}

// guard runs fn, reporting a panic under code.
func (c *Cell[T]) guard(code string, sentinel error, fn func()) (failed bool) {
	defer func() {
		if r := recover(); r != nil {
			c.report(code, recovered(sentinel, r))
			failed = true
		}
	}()
	fn()
	return false
}

// report sends a coded diagnostic to the cell's sink and returns it.
func (c *Cell[T]) report(code string, err error) error {
	d := diagnostic(code, c.info, err)
	c.diag.Report(c.info, d)
	return d
}
