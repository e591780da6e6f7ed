package cell

// Proxy presents a target cell of type S as a cell of type T through a pair
// of mappers. It follows its target only while it has listeners.
type Proxy[T, S any] struct {
	*Cell[T]

	// guarded by Cell.mu
	target Observable[S]
	read   func(S) T
	write  func(T) S
	link   Handle
}

// NewProxy creates a proxy over target. A nil target leaves the proxy
// detached; nil mappers are reported and replaced by zero-value mappers.
func NewProxy[T, S any](target Observable[S], read func(S) T, write func(T) S, opts ...Option) *Proxy[T, S] {
	p := newProxy[T, S](KindProxy, opts)
	p.self = p
	_ = p.SetReadMapper(read)
	_ = p.SetWriteMapper(write)
	if target != nil {
		_ = p.SetTarget(target)
	}
	return p
}

// Mirror creates a proxy that passes values through unchanged.
func Mirror[T any](target Observable[T], opts ...Option) *Proxy[T, T] {
	identity := func(v T) T { return v }
	return NewProxy(target, identity, identity, opts...)
}

func newProxy[T, S any](kind Kind, opts []Option) *Proxy[T, S] {
	p := &Proxy[T, S]{Cell: newCell[T](kind, opts)}
	p.read = func(S) T {
		var zero T
		return zero
	}
	p.write = func(T) S {
		var zero S
		return zero
	}
	p.demand = p.onDemand
	return p
}

// Target returns the current target, or nil when detached.
func (p *Proxy[T, S]) Target() Observable[S] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// SetTarget points the proxy at target. While demanded, the proxy moves its
// subscription and notifies if the mapped value changed.
func (p *Proxy[T, S]) SetTarget(target Observable[S]) error {
	if isNilSource(target) {
		return p.report(codeInvalidTarget, ErrInvalidTarget)
	}
	p.unlink()
	p.mu.Lock()
	p.target = target
	active := p.refs > 0
	p.mu.Unlock()
	if active {
		p.relink()
	}
	return nil
}

// Detach drops the target and its subscription.
func (p *Proxy[T, S]) Detach() {
	p.unlink()
	p.mu.Lock()
	p.target = nil
	p.mu.Unlock()
}

// SetReadMapper replaces the target-to-proxy mapper.
func (p *Proxy[T, S]) SetReadMapper(fn func(S) T) error {
	if fn == nil {
		return p.report(codeNilMapper, ErrNilMapper)
	}
	p.mu.Lock()
	p.read = fn
	p.mu.Unlock()
	return nil
}

// SetWriteMapper replaces the proxy-to-target mapper.
func (p *Proxy[T, S]) SetWriteMapper(fn func(T) S) error {
	if fn == nil {
		return p.report(codeNilMapper, ErrNilMapper)
	}
	p.mu.Lock()
	p.write = fn
	p.mu.Unlock()
	return nil
}

// Get reads the target and maps the result. A detached proxy is empty.
func (p *Proxy[T, S]) Get() Result[T] {
	p.mu.Lock()
	target, read := p.target, p.read
	p.mu.Unlock()
	if target == nil {
		return Empty[T]()
	}
	return Map(target.Get(), read)
}

// Set writes v. See SetMaybe.
func (p *Proxy[T, S]) Set(v T) {
	p.SetMaybe(Some(v))
}

// SetMaybe applies the proxy's limiter and writes the mapped result to the
// target. The target decides whether anything changed.
func (p *Proxy[T, S]) SetMaybe(m Maybe[T]) {
	v, ok := p.limit(m)
	if !ok {
		return
	}
	p.mu.Lock()
	target, write := p.target, p.write
	p.mu.Unlock()
	if target == nil {
		return
	}
	target.Set(write(v))
}

// Update re-notifies listeners with the mapped value of the target.
func (p *Proxy[T, S]) Update() {
	p.Get().Then(p.emit)
}

// Compare reports whether v differs from the mapped target value. Pending
// and empty reads differ from everything.
func (p *Proxy[T, S]) Compare(v T) bool {
	cur, ok := p.Get().Value()
	if !ok {
		return true
	}
	p.mu.Lock()
	equal := p.equal
	p.mu.Unlock()
	return !equal(cur, v)
}

func (p *Proxy[T, S]) onDemand(active bool) {
	if active {
		p.relink()
		return
	}
	p.unlink()
}

// relink subscribes to the current target. The immediate delivery primes
// the cached value used to suppress duplicate notifications.
func (p *Proxy[T, S]) relink() {
	p.mu.Lock()
	target := p.target
	p.mu.Unlock()
	if target == nil {
		return
	}
	h := target.AddListener(func(v S, _ Observable[S]) {
		p.mu.Lock()
		read := p.read
		p.mu.Unlock()
		p.commit(read(v))
	}, true)

	p.mu.Lock()
	p.link = h
	p.mu.Unlock()
}

func (p *Proxy[T, S]) unlink() {
	p.mu.Lock()
	target, h := p.target, p.link
	p.link = 0
	var zero T
	p.value = zero
	p.defined = false
	p.mu.Unlock()
	if target != nil && h != 0 {
		target.RemoveListener(h)
	}
}
