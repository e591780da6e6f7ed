package cell

import "errors"

// Sentinel errors wrapped by every diagnostic a cell reports. Diagnostics
// carry a code and the cell name on top of these; match them with errors.Is.

// ErrNilListener is reported when AddListener receives a nil function.
var ErrNilListener = errors.New("cell: nil listener")

// ErrNilLimiter is reported when a nil limiter is installed.
var ErrNilLimiter = errors.New("cell: nil limiter")

// ErrNilReducer is reported when an aggregate is given a nil reducer.
var ErrNilReducer = errors.New("cell: nil reducer")

// ErrNilMapper is reported when a proxy is given a nil mapper.
var ErrNilMapper = errors.New("cell: nil mapper")

// ErrInvalidSource is reported when an aggregate is given a nil source.
var ErrInvalidSource = errors.New("cell: source is not a cell")

// ErrInvalidTarget is reported when a proxy is pointed at a nil target.
var ErrInvalidTarget = errors.New("cell: proxy target is not a cell")

// ErrListenerPanic is reported when a listener panics during notification.
var ErrListenerPanic = errors.New("cell: listener panicked")

// ErrHookPanic is reported when a demand hook panics.
var ErrHookPanic = errors.New("cell: demand hook panicked")

// ErrBindingPanic is reported when a remote binding function panics.
var ErrBindingPanic = errors.New("cell: remote binding panicked")

// ErrNoPull rejects a fetch on a remote cell that has no Pull binding.
var ErrNoPull = errors.New("cell: remote has no pull binding")

// ErrNotFetched rejects a fetch that failed without a cause.
var ErrNotFetched = errors.New("cell: remote value not fetched")
