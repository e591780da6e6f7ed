package cell

import (
	"context"
	"reflect"
	"slices"

	"golang.org/x/sync/errgroup"
)

// ReadReducer derives the aggregate value from the source values, in
// source order.
type ReadReducer[T any] func(values []T) T

// WriteReducer splits a target value into one write per source. out has one
// slot per source and starts as all None; slots left None are not written.
// buffer holds the last known source values and must not be modified.
type WriteReducer[T any] func(target T, out []Maybe[T], buffer []T)

// Aggregate derives one value from several source cells and writes back to
// them through a reducer pair.
//
// While it has listeners, the aggregate subscribes to every source and keeps
// its value equal to read(buffer). Without listeners each Get polls the
// sources afresh.
type Aggregate[T any] struct {
	*Cell[T]

	// guarded by Cell.mu
	sources      []Observable[T]
	buffer       []T
	filled       []bool
	missing      int
	subs         []Handle
	read         ReadReducer[T]
	write        WriteReducer[T]
	subscribed   bool
	distributing int
	stale        bool
	epoch        uint64
}

// NewAggregate creates an aggregate over sources. Invalid sources and nil
// reducers are reported; the aggregate is still returned and usable.
func NewAggregate[T any](sources []Observable[T], read ReadReducer[T], write WriteReducer[T], opts ...Option) *Aggregate[T] {
	a := &Aggregate[T]{Cell: newCell[T](KindAggregate, opts)}
	a.self = a
	a.demand = a.onDemand
	a.read = func([]T) T {
		var zero T
		return zero
	}
	a.write = func(T, []Maybe[T], []T) {}

	_ = a.SetReader(read)
	_ = a.SetWriter(write)
	_ = a.SetSources(sources)
	return a
}

// SetSources replaces the source list. A nil source rejects the whole list
// and leaves the aggregate unchanged.
func (a *Aggregate[T]) SetSources(sources []Observable[T]) error {
	for _, s := range sources {
		if isNilSource(s) {
			return a.report(codeInvalidSource, ErrInvalidSource)
		}
	}

	a.disconnect()

	a.mu.Lock()
	a.sources = slices.Clone(sources)
	a.buffer = make([]T, len(sources))
	a.filled = make([]bool, len(sources))
	a.missing = len(sources)
	active := a.refs > 0
	a.mu.Unlock()

	if active {
		a.connect()
	}
	return nil
}

// Sources returns a copy of the source list.
func (a *Aggregate[T]) Sources() []Observable[T] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.sources)
}

// SetReader replaces the read reducer and recomputes while subscribed.
func (a *Aggregate[T]) SetReader(fn ReadReducer[T]) error {
	if fn == nil {
		return a.report(codeNilReducer, ErrNilReducer)
	}
	a.mu.Lock()
	a.read = fn
	a.mu.Unlock()
	a.recompute()
	return nil
}

// SetWriter replaces the write reducer.
func (a *Aggregate[T]) SetWriter(fn WriteReducer[T]) error {
	if fn == nil {
		return a.report(codeNilReducer, ErrNilReducer)
	}
	a.mu.Lock()
	a.write = fn
	a.mu.Unlock()
	return nil
}

// Get returns the cached value while subscribed. Otherwise it reads every
// source; if any source is pending the result is pending until all settle.
func (a *Aggregate[T]) Get() Result[T] {
	a.mu.Lock()
	if a.subscribed && a.missing == 0 && a.defined {
		v := a.value
		a.mu.Unlock()
		return Ready(v)
	}
	sources, read := a.sources, a.read
	a.mu.Unlock()

	results := readAll(sources)
	if !anyPending(results) {
		return Ready(read(settledValues(results)))
	}

	f := NewFuture[T]()
	go func() {
		values, err := awaitAll(context.Background(), results)
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(read(values))
	}()
	return Pending(f)
}

// Set writes v. See SetMaybe.
func (a *Aggregate[T]) Set(v T) {
	a.SetMaybe(Some(v))
}

// SetMaybe applies the limiter, splits the result with the write reducer and
// writes each source in order. The aggregate recomputes once after the last
// source is written. When unsubscribed the buffer is read from the sources
// first, which may complete asynchronously.
func (a *Aggregate[T]) SetMaybe(m Maybe[T]) {
	v, ok := a.limit(m)
	if !ok {
		return
	}

	a.mu.Lock()
	sources, write := a.sources, a.write
	if a.subscribed && a.missing == 0 {
		buf := slices.Clone(a.buffer)
		a.mu.Unlock()
		a.distribute(v, sources, buf, write)
		return
	}
	a.mu.Unlock()

	results := readAll(sources)
	if !anyPending(results) {
		a.distribute(v, sources, settledValues(results), write)
		return
	}
	go func() {
		buf, err := awaitAll(context.Background(), results)
		if err != nil {
			a.report(codeFetchFailed, err)
			return
		}
		a.distribute(v, sources, buf, write)
	}()
}

func (a *Aggregate[T]) distribute(v T, sources []Observable[T], buf []T, write WriteReducer[T]) {
	out := make([]Maybe[T], len(sources))
	write(v, out, buf)

	a.mu.Lock()
	a.distributing++
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.distributing--
		flush := a.distributing == 0 && a.stale
		if flush {
			a.stale = false
		}
		a.mu.Unlock()
		if flush {
			a.recompute()
		}
	}()

	for i, s := range sources {
		s.SetMaybe(out[i])
	}
}

func (a *Aggregate[T]) onDemand(active bool) {
	if active {
		a.connect()
		return
	}
	a.disconnect()
}

func (a *Aggregate[T]) connect() {
	a.mu.Lock()
	a.epoch++
	epoch := a.epoch
	sources := a.sources
	a.subscribed = true
	a.mu.Unlock()

	subs := make([]Handle, len(sources))
	for i, s := range sources {
		i := i
		subs[i] = s.AddListener(func(v T, _ Observable[T]) {
			a.receive(epoch, i, v)
		}, true)
	}

	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		for i, h := range subs {
			sources[i].RemoveListener(h)
		}
		return
	}
	a.subs = subs
	a.mu.Unlock()

	a.recompute()
}

func (a *Aggregate[T]) disconnect() {
	a.mu.Lock()
	a.epoch++
	sources, subs := a.sources, a.subs
	a.subs = nil
	a.subscribed = false
	for i := range a.filled {
		a.filled[i] = false
	}
	a.missing = len(a.filled)
	a.mu.Unlock()

	for i, h := range subs {
		sources[i].RemoveListener(h)
	}
}

// receive stores a source value delivered by subscription epoch.
func (a *Aggregate[T]) receive(epoch uint64, i int, v T) {
	a.mu.Lock()
	if epoch != a.epoch || i >= len(a.buffer) {
		a.mu.Unlock()
		return
	}
	a.buffer[i] = v
	if !a.filled[i] {
		a.filled[i] = true
		a.missing--
	}
	if a.distributing > 0 {
		a.stale = true
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.recompute()
}

// recompute commits read(buffer) once every source has reported.
func (a *Aggregate[T]) recompute() {
	a.mu.Lock()
	if !a.subscribed || a.missing > 0 {
		a.mu.Unlock()
		return
	}
	buf, read := slices.Clone(a.buffer), a.read
	a.mu.Unlock()
	a.commit(read(buf))
}

func readAll[T any](sources []Observable[T]) []Result[T] {
	results := make([]Result[T], len(sources))
	for i, s := range sources {
		results[i] = s.Get()
	}
	return results
}

func anyPending[T any](results []Result[T]) bool {
	return slices.ContainsFunc(results, Result[T].IsPending)
}

func settledValues[T any](results []Result[T]) []T {
	values := make([]T, len(results))
	for i, r := range results {
		values[i], _ = r.Value()
	}
	return values
}

// awaitAll waits for every pending result. The first failure wins.
func awaitAll[T any](ctx context.Context, results []Result[T]) ([]T, error) {
	values := make([]T, len(results))
	g, ctx := errgroup.WithContext(ctx)
	for i, r := range results {
		i, r := i, r
		if !r.IsPending() {
			values[i], _ = r.Value()
			continue
		}
		g.Go(func() error {
			v, err := r.Await(ctx)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

func isNilSource(s any) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
