package cell

// Maybe holds either a value or nothing. Writing None to a cell is always a
// no-op; write reducers use it to leave a source untouched.
type Maybe[T any] struct {
	value T
	ok    bool
}

// Some returns a Maybe holding v.
func Some[T any](v T) Maybe[T] {
	return Maybe[T]{value: v, ok: true}
}

// None returns an empty Maybe.
func None[T any]() Maybe[T] {
	return Maybe[T]{}
}

// Get returns the held value and whether there is one.
func (m Maybe[T]) Get() (T, bool) {
	return m.value, m.ok
}

// IsSome reports whether m holds a value.
func (m Maybe[T]) IsSome() bool {
	return m.ok
}

// Or returns the held value, or fallback when m is empty.
func (m Maybe[T]) Or(fallback T) T {
	if m.ok {
		return m.value
	}
	return fallback
}
