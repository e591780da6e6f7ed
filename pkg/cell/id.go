package cell

import "sync/atomic"

// globalIDCounter is the source of unique IDs for cells and listener handles.
var globalIDCounter uint64

// nextID returns the next unique ID. IDs are monotonically increasing and
// never reused, so the zero value never names a cell or a listener.
func nextID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}
