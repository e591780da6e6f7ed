package cell

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeOwner plays the system that owns a remote value.
type fakeOwner struct {
	pulls    atomic.Int32
	setups   atomic.Int32
	cleanups atomic.Int32

	mu     sync.Mutex
	pushed []int
}

func (o *fakeOwner) binding() RemoteBinding[int] {
	return RemoteBinding[int]{
		Setup:   func(*Remote[int]) { o.setups.Add(1) },
		Cleanup: func(*Remote[int]) { o.cleanups.Add(1) },
		Push: func(v int, _ *Remote[int]) {
			o.mu.Lock()
			o.pushed = append(o.pushed, v)
			o.mu.Unlock()
		},
		Pull: func(*Remote[int]) { o.pulls.Add(1) },
	}
}

func awaitResult[T any](t *testing.T, r Result[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := r.Await(ctx)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	return v
}

func TestRemoteSharedFetch(t *testing.T) {
	owner := &fakeOwner{}
	inst := &countingInstrumentation{}
	r := NewRemote(owner.binding(), WithInstrumentation(inst))

	results := make([]Result[int], 3)
	for i := range results {
		results[i] = r.Get()
		if !results[i].IsPending() {
			t.Fatalf("read %d should be pending", i)
		}
	}
	if n := owner.pulls.Load(); n != 1 {
		t.Fatalf("expected exactly one pull, got %d", n)
	}
	if !r.Fetching() {
		t.Error("expected a fetch in flight")
	}

	r.ReceiveFromOnce(9)

	for i, res := range results {
		if v := awaitResult(t, res); v != 9 {
			t.Errorf("waiter %d: expected 9, got %d", i, v)
		}
	}
	if r.Fetching() {
		t.Error("cycle should be closed")
	}
	if inst.started != 1 || inst.settled != 1 || inst.waiters[0] != 3 {
		t.Errorf("expected one cycle with 3 waiters, got started=%d settled=%d waiters=%v",
			inst.started, inst.settled, inst.waiters)
	}
}

func TestRemoteOnceDoesNotCache(t *testing.T) {
	owner := &fakeOwner{}
	r := NewRemote(owner.binding())

	res := r.Get()
	r.ReceiveFromOnce(1)
	awaitResult(t, res)

	if r.HasValue() {
		t.Error("one-shot answer must not mark the cell as holding a value")
	}
	if !r.Get().IsPending() {
		t.Error("next read should fetch again")
	}
	if n := owner.pulls.Load(); n != 2 {
		t.Errorf("expected 2 pulls, got %d", n)
	}
}

func TestRemoteAsyncPull(t *testing.T) {
	r := NewRemote(RemoteBinding[string]{
		Pull: func(r *Remote[string]) {
			go func() {
				time.Sleep(5 * time.Millisecond)
				r.ReceiveFromOnce("hello")
			}()
		},
	})

	if v := awaitResult(t, r.Get()); v != "hello" {
		t.Errorf("expected hello, got %q", v)
	}
}

func TestRemoteSubscription(t *testing.T) {
	owner := &fakeOwner{}
	r := NewRemote(owner.binding())
	rec := &recorder[int]{}

	h := r.AddListener(rec.listen, false)
	if n := owner.setups.Load(); n != 1 {
		t.Fatalf("expected setup on first listener, got %d", n)
	}

	// Reads while the subscription is expected to answer do not pull
	pending := r.Get()
	if n := owner.pulls.Load(); n != 0 {
		t.Errorf("expected no pull while ordering, got %d", n)
	}

	r.ReceiveFromStream(5)

	if !r.HasValue() {
		t.Error("expected HasValue after stream delivery with listeners")
	}
	if v := awaitResult(t, pending); v != 5 {
		t.Errorf("pending read: expected 5, got %d", v)
	}
	if got := rec.got(); len(got) != 1 || got[0] != 5 {
		t.Errorf("expected listener called with 5, got %v", got)
	}
	if v := mustValue(t, r.Get()); v != 5 {
		t.Errorf("expected ready 5, got %d", v)
	}

	// Duplicate deliveries are ignored
	r.ReceiveFromStream(5)
	if n := len(rec.got()); n != 1 {
		t.Errorf("duplicate delivery notified, got %d calls", n)
	}

	r.RemoveListener(h)
	if n := owner.cleanups.Load(); n != 1 {
		t.Errorf("expected cleanup on last listener, got %d", n)
	}
	if r.HasValue() {
		t.Error("HasValue should clear on cleanup")
	}
}

func TestRemoteStreamWithoutListeners(t *testing.T) {
	owner := &fakeOwner{}
	r := NewRemote(owner.binding())

	r.ReceiveFromStream(3)

	if r.HasValue() {
		t.Error("value delivered without listeners must not mark HasValue")
	}
	if v, ok := r.Peek(); !ok || v != 3 {
		t.Errorf("expected cached 3, got %d ok=%v", v, ok)
	}
	if !r.Get().IsPending() {
		t.Error("read should still acquire")
	}
	if n := owner.pulls.Load(); n != 1 {
		t.Errorf("expected a pull, got %d", n)
	}
}

func TestRemoteRunImmediatelyDeliversOnce(t *testing.T) {
	owner := &fakeOwner{}
	r := NewRemote(owner.binding())
	rec := &recorder[int]{}

	r.AddListener(rec.listen, true)
	r.ReceiveFromStream(4)

	if got := rec.got(); len(got) != 1 || got[0] != 4 {
		t.Errorf("expected exactly one call with 4, got %v", got)
	}
}

func TestRemoteSetPushes(t *testing.T) {
	owner := &fakeOwner{}
	r := NewRemote(owner.binding()).WithLimiter(func(v int, _ Observable[int]) (int, bool) {
		return v, v != 0
	})

	r.Set(8)
	r.Set(0)

	owner.mu.Lock()
	pushed := append([]int(nil), owner.pushed...)
	owner.mu.Unlock()
	if len(pushed) != 1 || pushed[0] != 8 {
		t.Errorf("expected [8] pushed, got %v", pushed)
	}
	if _, ok := r.Peek(); ok {
		t.Error("a push must not change the value before acknowledgement")
	}

	r.ReceiveFromStream(8)
	r.Set(8)
	owner.mu.Lock()
	n := len(owner.pushed)
	owner.mu.Unlock()
	if n != 1 {
		t.Errorf("writing the acknowledged value should not push again, got %d pushes", n)
	}
}

func TestRemoteFailFetch(t *testing.T) {
	sink := &diagSink{}
	r := NewRemote(RemoteBinding[int]{Pull: func(*Remote[int]) {}}, WithDiagnostics(sink))
	res := r.Get()

	cause := errors.New("backend down")
	r.FailFetch(cause)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := res.Await(ctx); !errors.Is(err, cause) {
		t.Errorf("expected %v, got %v", cause, err)
	}
	if errs := sink.all(); len(errs) != 1 {
		t.Errorf("expected one diagnostic, got %d", len(errs))
	}
	if r.Fetching() {
		t.Error("failed cycle should be closed")
	}
}

func TestRemotePullPanic(t *testing.T) {
	sink := &diagSink{}
	r := NewRemote(RemoteBinding[int]{
		Pull: func(*Remote[int]) { panic("no route") },
	}, WithDiagnostics(sink))

	res := r.Get()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := res.Await(ctx); !errors.Is(err, ErrBindingPanic) {
		t.Errorf("expected ErrBindingPanic, got %v", err)
	}
}

func TestRemoteCleanupHandsOffWaiters(t *testing.T) {
	owner := &fakeOwner{}
	r := NewRemote(owner.binding())

	h := r.AddListener(func(int, Observable[int]) {}, false)
	pending := r.Get()
	r.RemoveListener(h)

	if n := owner.pulls.Load(); n != 1 {
		t.Fatalf("waiting read should be handed to a pull, got %d pulls", n)
	}
	r.ReceiveFromOnce(6)
	if v := awaitResult(t, pending); v != 6 {
		t.Errorf("expected 6, got %d", v)
	}
}

func TestRemoteResubscribeAcceptsSameValue(t *testing.T) {
	owner := &fakeOwner{}
	r := NewRemote(owner.binding())
	rec := &recorder[int]{}

	h := r.AddListener(rec.listen, false)
	r.ReceiveFromStream(1)
	r.RemoveListener(h)

	r.AddListener(rec.listen, false)
	r.ReceiveFromStream(1)

	if !r.HasValue() {
		t.Error("expected HasValue after resubscription")
	}
	if n := len(rec.got()); n != 2 {
		t.Errorf("expected 2 notifications, got %d", n)
	}
}

func TestRemoteWithoutPullRejects(t *testing.T) {
	sink := &diagSink{}
	r := NewRemote(RemoteBinding[int]{}, WithDiagnostics(sink))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := r.Get().Await(ctx); !errors.Is(err, ErrNoPull) {
		t.Fatalf("expected ErrNoPull, got %v", err)
	}
	if r.Fetching() {
		t.Error("rejected cycle should be closed")
	}
	if errs := sink.all(); len(errs) != 1 || !errors.Is(errs[0], ErrNoPull) {
		t.Errorf("expected one ErrNoPull diagnostic, got %v", errs)
	}
}

// fetchOrder records fetch events. Its FetchStarted lets another goroutine
// try to settle the cycle before the start is recorded.
type fetchOrder struct {
	NopInstrumentation
	remote *Remote[int]

	mu     sync.Mutex
	events []string
}

func (f *fetchOrder) record(e string) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

func (f *fetchOrder) FetchStarted(Info) {
	go f.remote.ReceiveFromOnce(1)
	time.Sleep(10 * time.Millisecond)
	f.record("started")
}

func (f *fetchOrder) FetchSettled(Info, int, error) {
	f.record("settled")
}

func TestRemoteFetchStartedBeforeSettled(t *testing.T) {
	inst := &fetchOrder{}
	r := NewRemote(RemoteBinding[int]{Pull: func(*Remote[int]) {}}, WithInstrumentation(inst))
	inst.remote = r

	if v := awaitResult(t, r.Get()); v != 1 {
		t.Fatalf("expected 1, got %d", v)
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	if len(inst.events) != 2 || inst.events[0] != "started" || inst.events[1] != "settled" {
		t.Errorf("expected [started settled], got %v", inst.events)
	}
}
