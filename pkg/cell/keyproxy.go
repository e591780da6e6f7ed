package cell

import "maps"

// KeyProxy presents one key of a map cell as a cell of its own.
// Writes copy the map, set the key and write the copy back, so the target
// sees a new map and notifies normally.
type KeyProxy[K comparable, V any] struct {
	*Proxy[V, map[K]V]
	key K
}

// NewKeyProxy creates a proxy for key in target.
func NewKeyProxy[K comparable, V any](key K, target Observable[map[K]V], opts ...Option) *KeyProxy[K, V] {
	kp := &KeyProxy[K, V]{
		Proxy: newProxy[V, map[K]V](KindKeyProxy, opts),
		key:   key,
	}
	kp.self = kp
	kp.read = func(m map[K]V) V { return m[key] }
	kp.write = func(v V) map[K]V { return map[K]V{key: v} }
	if target != nil {
		_ = kp.SetTarget(target)
	}
	return kp
}

// Key returns the projected key.
func (kp *KeyProxy[K, V]) Key() K {
	return kp.key
}

// Set writes v. See SetMaybe.
func (kp *KeyProxy[K, V]) Set(v V) {
	kp.SetMaybe(Some(v))
}

// SetMaybe applies the limiter and writes v under the key once the target
// value is available.
func (kp *KeyProxy[K, V]) SetMaybe(m Maybe[V]) {
	v, ok := kp.limit(m)
	if !ok {
		return
	}
	target := kp.Target()
	if target == nil {
		return
	}
	target.Get().Then(func(cur map[K]V) {
		next := maps.Clone(cur)
		if next == nil {
			next = make(map[K]V, 1)
		}
		next[kp.key] = v
		target.Set(next)
	})
}
