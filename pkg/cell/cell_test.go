package cell

import (
	"errors"
	"sync"
	"testing"

	cerrors "github.com/vango-dev/cells/internal/errors"
)

// recorder collects listener calls.
type recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

func (r *recorder[T]) listen(v T, _ Observable[T]) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *recorder[T]) got() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

// diagSink collects diagnostics.
type diagSink struct {
	mu   sync.Mutex
	errs []error
}

func (d *diagSink) Report(_ Info, err error) {
	d.mu.Lock()
	d.errs = append(d.errs, err)
	d.mu.Unlock()
}

func (d *diagSink) all() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.errs...)
}

func mustValue[T any](t *testing.T, r Result[T]) T {
	t.Helper()
	v, ok := r.Value()
	if !ok {
		t.Fatalf("expected ready value, got pending=%v empty=%v", r.IsPending(), r.IsEmpty())
	}
	return v
}

func TestCellBasic(t *testing.T) {
	c := New(1)

	if got := mustValue(t, c.Get()); got != 1 {
		t.Errorf("expected initial value 1, got %d", got)
	}

	c.Set(5)
	if got := mustValue(t, c.Get()); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}

	if c.Compare(5) {
		t.Error("Compare(5) should report no difference")
	}
	if !c.Compare(6) {
		t.Error("Compare(6) should report a difference")
	}
}

func TestCellEmpty(t *testing.T) {
	c := NewEmpty[string]()

	if !c.Get().IsEmpty() {
		t.Error("expected empty result")
	}
	if !c.Compare("") {
		t.Error("empty cell should differ from every value")
	}

	c.Set("")
	if v, ok := c.Peek(); !ok || v != "" {
		t.Errorf("expected defined empty string, got %q ok=%v", v, ok)
	}
}

func TestCellUndefinedWriteIsNoop(t *testing.T) {
	c := New(3)
	rec := &recorder[int]{}
	c.AddListener(rec.listen, false)

	c.SetMaybe(None[int]())

	if got := mustValue(t, c.Get()); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if n := len(rec.got()); n != 0 {
		t.Errorf("expected no notifications, got %d", n)
	}
}

func TestCellLimiter(t *testing.T) {
	clamp := func(v int, _ Observable[int]) (int, bool) {
		if v < 0 {
			return 0, false
		}
		return min(v, 10), true
	}

	tests := []struct {
		name    string
		initial int
		set     int
		want    int
		notify  bool
	}{
		{"passes through", 1, 5, 5, true},
		{"transforms", 1, 50, 10, true},
		{"vetoes", 1, -3, 1, false},
		{"limited equals current", 10, 99, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.initial).WithLimiter(clamp)
			rec := &recorder[int]{}
			c.AddListener(rec.listen, false)

			c.Set(tt.set)

			if got := mustValue(t, c.Get()); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
			if notified := len(rec.got()) > 0; notified != tt.notify {
				t.Errorf("expected notify=%v, got %v", tt.notify, notified)
			}
		})
	}
}

func TestCellLimiterNotAppliedToInitial(t *testing.T) {
	c := New(100).WithLimiter(func(v int, _ Observable[int]) (int, bool) {
		return min(v, 10), true
	})
	if got := mustValue(t, c.Get()); got != 100 {
		t.Errorf("expected initial value stored verbatim, got %d", got)
	}
}

func TestCellNilLimiter(t *testing.T) {
	sink := &diagSink{}
	c := New(1, WithDiagnostics(sink))

	err := c.SetLimiter(nil)
	if !errors.Is(err, ErrNilLimiter) {
		t.Fatalf("expected ErrNilLimiter, got %v", err)
	}
	if cerrors.CodeOf(err) != "C002" {
		t.Errorf("expected code C002, got %q", cerrors.CodeOf(err))
	}
	if len(sink.all()) != 1 {
		t.Errorf("expected one diagnostic, got %d", len(sink.all()))
	}

	c.Set(7)
	if got := mustValue(t, c.Get()); got != 7 {
		t.Errorf("identity limiter should stay, got %d", got)
	}
}

func TestCellListenerOrder(t *testing.T) {
	c := New(0)
	var order []string
	c.AddListener(func(int, Observable[int]) { order = append(order, "f1") }, false)
	c.AddListener(func(int, Observable[int]) { order = append(order, "f2") }, false)
	c.AddListener(func(int, Observable[int]) { order = append(order, "f3") }, false)

	c.Set(1)
	want := []string{"f1", "f2", "f3"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}

	order = nil
	c.Update()
	if len(order) != 3 || order[0] != "f1" || order[2] != "f3" {
		t.Errorf("update: expected %v, got %v", want, order)
	}
}

func TestCellListenerReceivesSource(t *testing.T) {
	c := New(0)
	var src Observable[int]
	c.AddListener(func(_ int, s Observable[int]) { src = s }, false)
	c.Set(1)
	if src != Observable[int](c) {
		t.Error("listener should receive the cell as source")
	}
}

func TestCellRunImmediately(t *testing.T) {
	c := New(42)
	rec := &recorder[int]{}
	c.AddListener(rec.listen, true)

	if got := rec.got(); len(got) != 1 || got[0] != 42 {
		t.Errorf("expected immediate call with 42, got %v", got)
	}

	empty := NewEmpty[int]()
	rec2 := &recorder[int]{}
	empty.AddListener(rec2.listen, true)
	if n := len(rec2.got()); n != 0 {
		t.Errorf("empty cell should not run listener immediately, got %d calls", n)
	}
}

func TestCellRemoveListener(t *testing.T) {
	c := New(0)
	rec := &recorder[int]{}
	h := c.AddListener(rec.listen, false)

	if got := c.RemoveListener(h); got != h {
		t.Errorf("RemoveListener should return its handle")
	}
	c.Set(1)
	if n := len(rec.got()); n != 0 {
		t.Errorf("removed listener was called %d times", n)
	}
	if c.HasListeners() {
		t.Error("expected no listeners")
	}

	// Unknown handles are ignored
	c.RemoveListener(Handle(999999))
}

func TestCellSameFunctionTwice(t *testing.T) {
	c := New(0)
	rec := &recorder[int]{}
	h1 := c.AddListener(rec.listen, false)
	h2 := c.AddListener(rec.listen, false)
	if h1 == h2 {
		t.Fatal("each registration should get its own handle")
	}

	c.Set(1)
	if n := len(rec.got()); n != 2 {
		t.Errorf("expected 2 calls, got %d", n)
	}

	c.RemoveListener(h1)
	c.Set(2)
	if n := len(rec.got()); n != 3 {
		t.Errorf("expected 3 calls, got %d", n)
	}
}

func TestCellNilListener(t *testing.T) {
	sink := &diagSink{}
	c := New(0, WithDiagnostics(sink), WithName("counter"))

	if h := c.AddListener(nil, true); h != 0 {
		t.Errorf("expected zero handle, got %d", h)
	}
	if c.HasListeners() {
		t.Error("nil listener must not be registered")
	}

	errs := sink.all()
	if len(errs) != 1 {
		t.Fatalf("expected one diagnostic, got %d", len(errs))
	}
	if !errors.Is(errs[0], ErrNilListener) {
		t.Errorf("expected ErrNilListener, got %v", errs[0])
	}
	var coded *cerrors.Error
	if !errors.As(errs[0], &coded) || coded.Cell != "counter" {
		t.Errorf("expected coded error naming the cell, got %#v", errs[0])
	}
}

func TestCellDemandHook(t *testing.T) {
	c := New(0)
	var events []bool
	c.OnDemandChanged(func(active bool, _ Observable[int]) {
		events = append(events, active)
	})

	h1 := c.AddListener(func(int, Observable[int]) {}, false)
	h2 := c.AddListener(func(int, Observable[int]) {}, false)
	c.RemoveListener(h2)
	h3 := c.AddListener(func(int, Observable[int]) {}, false)
	c.RemoveListener(h1)
	c.RemoveListener(h3)

	if len(events) != 2 || events[0] != true || events[1] != false {
		t.Errorf("expected [true false], got %v", events)
	}
}

func TestCellDemandTransitionsStayOrdered(t *testing.T) {
	c := New(0)
	noop := func(int, Observable[int]) {}

	var mu sync.Mutex
	var events []bool
	blocked := make(chan struct{})
	release := make(chan struct{})
	first := true
	c.OnDemandChanged(func(active bool, _ Observable[int]) {
		mu.Lock()
		events = append(events, active)
		hold := !active && first
		if hold {
			first = false
		}
		mu.Unlock()
		if hold {
			close(blocked)
			<-release
		}
	})

	h := c.AddListener(noop, false)

	done := make(chan struct{})
	go func() {
		c.RemoveListener(h)
		close(done)
	}()

	// The release hook is still running when the next listener arrives.
	<-blocked
	c.AddListener(noop, false)
	close(release)
	<-done

	mu.Lock()
	got := append([]bool(nil), events...)
	mu.Unlock()

	want := []bool{true, false, true}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if !c.HasListeners() {
		t.Error("cell should still be demanded")
	}
}

func TestCellDemandHookAddsListener(t *testing.T) {
	c := New(0)
	var events []bool
	var inner Handle
	c.OnDemandChanged(func(active bool, _ Observable[int]) {
		events = append(events, active)
		if active && inner == 0 {
			inner = c.AddListener(func(int, Observable[int]) {}, false)
		}
	})

	h := c.AddListener(func(int, Observable[int]) {}, false)
	c.RemoveListener(h)
	c.RemoveListener(inner)

	if len(events) != 2 || !events[0] || events[1] {
		t.Errorf("expected [true false], got %v", events)
	}
}

func TestCellDemandHookBeforeAppend(t *testing.T) {
	c := New(0)
	var countAtHook int
	c.OnDemandChanged(func(active bool, _ Observable[int]) {
		if active {
			countAtHook = c.ListenerCount()
		}
	})
	c.AddListener(func(int, Observable[int]) {}, false)
	if countAtHook != 0 {
		t.Errorf("hook should fire before the listener is appended, saw %d", countAtHook)
	}
}

func TestCellDemandHookPanic(t *testing.T) {
	sink := &diagSink{}
	c := New(0, WithDiagnostics(sink))
	c.OnDemandChanged(func(bool, Observable[int]) { panic("boom") })

	h := c.AddListener(func(int, Observable[int]) {}, false)
	if !c.HasListeners() {
		t.Error("listener should be added despite hook panic")
	}
	c.RemoveListener(h)
	if c.HasListeners() {
		t.Error("listener should be removed despite hook panic")
	}

	errs := sink.all()
	if len(errs) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(errs))
	}
	for _, err := range errs {
		if !errors.Is(err, ErrHookPanic) {
			t.Errorf("expected ErrHookPanic, got %v", err)
		}
	}
}

func TestCellListenerPanicDoesNotStopOthers(t *testing.T) {
	sink := &diagSink{}
	c := New(0, WithDiagnostics(sink))
	rec := &recorder[int]{}

	c.AddListener(rec.listen, false)
	c.AddListener(func(int, Observable[int]) { panic(errors.New("bad observer")) }, false)
	c.AddListener(rec.listen, false)

	c.Set(1)

	if got := rec.got(); len(got) != 2 {
		t.Errorf("expected both healthy listeners called, got %v", got)
	}
	errs := sink.all()
	if len(errs) != 1 || !errors.Is(errs[0], ErrListenerPanic) {
		t.Errorf("expected one ErrListenerPanic diagnostic, got %v", errs)
	}
	if got := mustValue(t, c.Get()); got != 1 {
		t.Errorf("cell should hold 1, got %d", got)
	}
}

func TestCellUpdateIdempotent(t *testing.T) {
	c := New(7)
	rec := &recorder[int]{}
	c.AddListener(rec.listen, false)

	for j := 0; j < 3; j++ {
		c.Update()
	}

	got := rec.got()
	if len(got) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(got))
	}
	for _, v := range got {
		if v != 7 {
			t.Errorf("expected 7, got %d", v)
		}
	}
	if v := mustValue(t, c.Get()); v != 7 {
		t.Errorf("stored value changed to %d", v)
	}
}

func TestCellReentrantSet(t *testing.T) {
	c := New(0)
	var first, second []int

	// Clamp odd values up to the next even one from inside a listener
	c.AddListener(func(v int, src Observable[int]) {
		first = append(first, v)
		if v%2 == 1 {
			src.Set(v + 1)
		}
	}, false)
	c.AddListener(func(v int, _ Observable[int]) {
		second = append(second, v)
	}, false)

	c.Set(1)

	if got := mustValue(t, c.Get()); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if len(first) != 2 || first[0] != 1 || first[1] != 2 {
		t.Errorf("first listener: expected [1 2], got %v", first)
	}
	if len(second) != 1 || second[0] != 2 {
		t.Errorf("second listener should see only the newest value, got %v", second)
	}
}

func TestCellCustomEquals(t *testing.T) {
	type point struct{ X, Y int }
	c := New(point{1, 2}).WithEquals(func(a, b point) bool { return a.X == b.X })
	rec := &recorder[point]{}
	c.AddListener(rec.listen, false)

	c.Set(point{1, 99})
	if n := len(rec.got()); n != 0 {
		t.Errorf("custom equality should suppress the write, got %d calls", n)
	}
	c.Set(point{2, 0})
	if n := len(rec.got()); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

func TestCellSliceEquality(t *testing.T) {
	c := New([]int{1, 2, 3})
	rec := &recorder[[]int]{}
	c.AddListener(rec.listen, false)

	c.Set([]int{1, 2, 3})
	if n := len(rec.got()); n != 0 {
		t.Errorf("deep-equal slice should not notify, got %d", n)
	}
}

func TestCellMixedDynamicTypes(t *testing.T) {
	c := New[any](1)
	if !c.Compare("1") {
		t.Error("int and string should differ")
	}
	c.Set("1")
	if got := mustValue(t, c.Get()); got != "1" {
		t.Errorf("expected \"1\", got %v", got)
	}
}

func TestCellInstrumentation(t *testing.T) {
	inst := &countingInstrumentation{}
	c := New(0, WithInstrumentation(inst))
	h := c.AddListener(func(int, Observable[int]) {}, false)
	c.Set(1)
	c.Set(1)
	c.RemoveListener(h)

	if inst.notified != 1 {
		t.Errorf("expected 1 notification round, got %d", inst.notified)
	}
	if inst.demandOn != 1 || inst.demandOff != 1 {
		t.Errorf("expected one demand transition each way, got on=%d off=%d", inst.demandOn, inst.demandOff)
	}
}

func TestCellDefaultName(t *testing.T) {
	c := New(0)
	if c.Name() == "" || c.ID() == 0 {
		t.Errorf("expected generated identity, got %+v", c.Info())
	}
	named := New(0, WithName("price"))
	if named.Name() != "price" {
		t.Errorf("expected name price, got %q", named.Name())
	}
}

func TestCellConcurrentAccess(t *testing.T) {
	c := New(0)
	c.AddListener(func(int, Observable[int]) {}, false)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Set(i)
			_ = c.Get()
			h := c.AddListener(func(int, Observable[int]) {}, true)
			c.RemoveListener(h)
		}()
	}
	wg.Wait()

	if c.ListenerCount() != 1 {
		t.Errorf("expected 1 listener left, got %d", c.ListenerCount())
	}
}

type countingInstrumentation struct {
	NopInstrumentation
	mu        sync.Mutex
	notified  int
	failed    int
	demandOn  int
	demandOff int
	started   int
	settled   int
	waiters   []int
}

func (c *countingInstrumentation) Notified(Info, int) {
	c.mu.Lock()
	c.notified++
	c.mu.Unlock()
}

func (c *countingInstrumentation) ListenerFailed(Info, error) {
	c.mu.Lock()
	c.failed++
	c.mu.Unlock()
}

func (c *countingInstrumentation) DemandChanged(_ Info, active bool) {
	c.mu.Lock()
	if active {
		c.demandOn++
	} else {
		c.demandOff++
	}
	c.mu.Unlock()
}

func (c *countingInstrumentation) FetchStarted(Info) {
	c.mu.Lock()
	c.started++
	c.mu.Unlock()
}

func (c *countingInstrumentation) FetchSettled(_ Info, waiters int, _ error) {
	c.mu.Lock()
	c.settled++
	c.waiters = append(c.waiters, waiters)
	c.mu.Unlock()
}
