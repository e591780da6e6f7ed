// Package cell provides observable value cells and the derived cells built
// on them.
//
// A cell holds one value, gates writes through a limiter and an equality
// check, and notifies listeners in registration order. Cells know when they
// are demanded: the first listener and the last removal fire a demand hook,
// which derived cells use to acquire and release their upstream resources.
//
// # Core Types
//
// Cell[T] is the base container:
//
//	count := cell.New(0)
//	h := count.AddListener(func(v int, _ cell.Observable[int]) {
//	    fmt.Println("count:", v)
//	}, true)
//	count.Set(5)
//	count.RemoveListener(h)
//
// Remote[T] holds a value owned elsewhere. Its binding starts a subscription
// while the cell is demanded and answers one-shot pulls otherwise; every
// concurrent Get shares one fetch:
//
//	user := cell.NewRemote(cell.RemoteBinding[User]{
//	    Pull: func(r *cell.Remote[User]) {
//	        go func() { r.ReceiveFromOnce(load()) }()
//	    },
//	})
//	u, err := user.Get().Await(ctx)
//
// Aggregate[T] derives one value from several cells and writes back to them:
//
//	total := cell.NewSum([]cell.Observable[float64]{a, b})
//	total.Set(11) // a and b move by the same amount
//
// # Reads
//
// Get returns a Result, which is either ready, empty or pending on a
// Future. Plain cells are never pending.
//
// # Failures
//
// Nothing panics out of a cell. Contract violations and panicking listeners
// or hooks are reported to a Diagnostics sink as coded errors wrapping the
// sentinels in this package; the default sink logs through log/slog.
//
// # Thread Safety
//
// All cells are safe for concurrent use. Listeners, limiters, hooks and
// bindings run without any cell lock held.
package cell
