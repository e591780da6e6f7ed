package cell

import "slices"

// SequenceListener is told about one structural change: amount > 0 values
// were inserted at index, amount < 0 values were removed at index, or
// amount == 0 replaced the value at index. values holds inserted or
// replacing elements and is nil for removals.
type SequenceListener[T comparable] func(index, amount int, values []T, s *Sequence[T])

type sequenceEntry[T comparable] struct {
	handle Handle
	fn     SequenceListener[T]
}

type sequenceChange[T comparable] struct {
	index  int
	amount int
	values []T
}

// Sequence is a slice cell that reports element-level changes.
//
// Element mutations notify sequence listeners first, one call per change,
// then regular listeners once with the resulting slice. Whole-slice writes
// and Empty notify regular listeners only. Slices handed to listeners must
// not be modified.
type Sequence[T comparable] struct {
	*Cell[[]T]

	// guarded by Cell.mu
	seqListeners []sequenceEntry[T]
	elemLimiter  func(T) T
}

// NewSequence creates a sequence holding a copy of initial.
func NewSequence[T comparable](initial []T, opts ...Option) *Sequence[T] {
	s := &Sequence[T]{Cell: newCell[[]T](KindSequence, opts)}
	s.self = s
	s.equal = slices.Equal[[]T, T]
	s.value = slices.Clone(initial)
	if s.value == nil {
		s.value = []T{}
	}
	s.defined = true
	return s
}

// SetElementLimiter installs fn to transform every inserted element.
func (s *Sequence[T]) SetElementLimiter(fn func(T) T) error {
	if fn == nil {
		return s.report(codeNilLimiter, ErrNilLimiter)
	}
	s.mu.Lock()
	s.elemLimiter = fn
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the elements.
func (s *Sequence[T]) Get() Result[[]T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Ready(slices.Clone(s.value))
}

// Set replaces the elements with a copy of v. See SetMaybe.
func (s *Sequence[T]) Set(v []T) {
	s.SetMaybe(Some(v))
}

// SetMaybe applies the limiter and stores a copy of the result when its
// elements differ from the current ones.
func (s *Sequence[T]) SetMaybe(m Maybe[[]T]) {
	v, ok := s.limit(m)
	if !ok {
		return
	}
	v = slices.Clone(v)
	if v == nil {
		v = []T{}
	}
	s.commit(v)
}

// AddSequenceListener registers fn for element-level changes.
func (s *Sequence[T]) AddSequenceListener(fn SequenceListener[T]) Handle {
	if fn == nil {
		s.report(codeNilListener, ErrNilListener)
		return 0
	}
	h := Handle(nextID())
	s.mu.Lock()
	s.seqListeners = append(s.seqListeners, sequenceEntry[T]{handle: h, fn: fn})
	s.mu.Unlock()
	return h
}

// RemoveSequenceListener unregisters h and returns it.
func (s *Sequence[T]) RemoveSequenceListener(h Handle) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.seqListeners, func(e sequenceEntry[T]) bool {
		return e.handle == h
	})
	if i >= 0 {
		s.seqListeners = slices.Delete(s.seqListeners, i, i+1)
	}
	if len(s.seqListeners) == 0 {
		s.seqListeners = nil
	}
	return h
}

// Len returns the number of elements.
func (s *Sequence[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.value)
}

// At returns the element at index.
func (s *Sequence[T]) At(index int) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.value) {
		var zero T
		return zero, false
	}
	return s.value[index], true
}

// IndexOf returns the first index of v at or after from, or -1. A negative
// from counts back from the end.
func (s *Sequence[T]) IndexOf(v T, from int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if from < 0 {
		from = max(len(s.value)+from, 0)
	}
	if from >= len(s.value) {
		return -1
	}
	if i := slices.Index(s.value[from:], v); i >= 0 {
		return from + i
	}
	return -1
}

// Push appends elems.
func (s *Sequence[T]) Push(elems ...T) {
	if len(elems) == 0 {
		return
	}
	elems = s.limitElems(elems)
	s.apply(func(cur []T) ([]T, []sequenceChange[T]) {
		return append(cur, elems...), []sequenceChange[T]{{index: len(cur), amount: len(elems), values: elems}}
	})
}

// Unshift prepends elems.
func (s *Sequence[T]) Unshift(elems ...T) {
	if len(elems) == 0 {
		return
	}
	elems = s.limitElems(elems)
	s.apply(func(cur []T) ([]T, []sequenceChange[T]) {
		return slices.Insert(cur, 0, elems...), []sequenceChange[T]{{index: 0, amount: len(elems), values: elems}}
	})
}

// Pop removes and returns the last element.
func (s *Sequence[T]) Pop() (T, bool) {
	var out T
	var ok bool
	s.apply(func(cur []T) ([]T, []sequenceChange[T]) {
		if len(cur) == 0 {
			return cur, nil
		}
		last := len(cur) - 1
		out, ok = cur[last], true
		return slices.Delete(cur, last, last+1), []sequenceChange[T]{{index: last, amount: -1}}
	})
	return out, ok
}

// Shift removes and returns the first element.
func (s *Sequence[T]) Shift() (T, bool) {
	var out T
	var ok bool
	s.apply(func(cur []T) ([]T, []sequenceChange[T]) {
		if len(cur) == 0 {
			return cur, nil
		}
		out, ok = cur[0], true
		return slices.Delete(cur, 0, 1), []sequenceChange[T]{{index: 0, amount: -1}}
	})
	return out, ok
}

// Splice removes deleteCount elements at start, inserts elems there and
// returns the removed elements. start and deleteCount are clamped to the
// sequence; a negative start counts back from the end.
func (s *Sequence[T]) Splice(start, deleteCount int, elems ...T) []T {
	elems = s.limitElems(elems)
	var removed []T
	s.apply(func(cur []T) ([]T, []sequenceChange[T]) {
		n := len(cur)
		if start < 0 {
			start = max(n+start, 0)
		}
		start = min(start, n)
		deleteCount = min(max(deleteCount, 0), n-start)

		var changes []sequenceChange[T]
		if deleteCount > 0 {
			removed = slices.Clone(cur[start : start+deleteCount])
			cur = slices.Delete(cur, start, start+deleteCount)
			changes = append(changes, sequenceChange[T]{index: start, amount: -deleteCount})
		}
		if len(elems) > 0 {
			cur = slices.Insert(cur, start, elems...)
			changes = append(changes, sequenceChange[T]{index: start, amount: len(elems), values: elems})
		}
		return cur, changes
	})
	return removed
}

// SetAt replaces the element at index. Writing past the end grows the
// sequence with zero values first.
func (s *Sequence[T]) SetAt(index int, v T) {
	if index < 0 {
		return
	}
	v = s.limitElems([]T{v})[0]
	s.apply(func(cur []T) ([]T, []sequenceChange[T]) {
		if index < len(cur) {
			if cur[index] == v {
				return cur, nil
			}
			cur[index] = v
			return cur, []sequenceChange[T]{{index: index, amount: 0, values: []T{v}}}
		}
		var changes []sequenceChange[T]
		if gap := index - len(cur); gap > 0 {
			changes = append(changes, sequenceChange[T]{index: len(cur), amount: gap, values: make([]T, gap)})
			cur = append(cur, make([]T, gap)...)
		}
		cur = append(cur, v)
		changes = append(changes, sequenceChange[T]{index: index, amount: 1, values: []T{v}})
		return cur, changes
	})
}

// RemoveIfExist removes every occurrence of v.
func (s *Sequence[T]) RemoveIfExist(v T) {
	s.apply(func(cur []T) ([]T, []sequenceChange[T]) {
		var changes []sequenceChange[T]
		for i := slices.Index(cur, v); i >= 0; i = slices.Index(cur, v) {
			cur = slices.Delete(cur, i, i+1)
			changes = append(changes, sequenceChange[T]{index: i, amount: -1})
		}
		return cur, changes
	})
}

// Empty removes every element and re-notifies regular listeners.
func (s *Sequence[T]) Empty() {
	s.mu.Lock()
	s.value = []T{}
	s.mu.Unlock()
	s.Update()
}

func (s *Sequence[T]) limitElems(elems []T) []T {
	s.mu.Lock()
	fn := s.elemLimiter
	s.mu.Unlock()
	elems = slices.Clone(elems)
	if fn == nil {
		return elems
	}
	for i, e := range elems {
		elems[i] = fn(e)
	}
	return elems
}

// apply runs fn on a private copy of the elements under the lock and
// publishes the result when fn reports changes.
func (s *Sequence[T]) apply(fn func(cur []T) ([]T, []sequenceChange[T])) {
	s.mu.Lock()
	next, changes := fn(slices.Clone(s.value))
	if len(changes) == 0 {
		s.mu.Unlock()
		return
	}
	s.value = next
	listeners := slices.Clone(s.seqListeners)
	gen, entries := s.snapshotLocked()
	s.mu.Unlock()

	for _, ch := range changes {
		for _, l := range listeners {
			s.callSequence(l.fn, ch)
		}
	}
	s.deliver(next, gen, entries)
}

func (s *Sequence[T]) callSequence(fn SequenceListener[T], ch sequenceChange[T]) {
	defer func() {
		if r := recover(); r != nil {
			err := recovered(ErrListenerPanic, r)
			s.report(codeListenerPanic, err)
			s.inst.ListenerFailed(s.info, err)
		}
	}()
	fn(ch.index, ch.amount, ch.values, s)
}
