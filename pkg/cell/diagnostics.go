package cell

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	cerrors "github.com/vango-dev/cells/internal/errors"
)

// Kind names the variant of a cell in diagnostics and metrics.
type Kind string

const (
	KindCell      Kind = "cell"
	KindRemote    Kind = "remote"
	KindAggregate Kind = "aggregate"
	KindSequence  Kind = "sequence"
	KindProxy     Kind = "proxy"
	KindKeyProxy  Kind = "key_proxy"
	KindText      Kind = "text"
)

// Info identifies a cell to diagnostics and instrumentation.
type Info struct {
	ID   uint64
	Name string
	Kind Kind
}

// Diagnostics receives non-fatal problems: contract violations, panicking
// listeners and hooks, failed fetches. The cell stays usable after every
// report.
type Diagnostics interface {
	Report(info Info, err error)
}

// DiagnosticsFunc adapts a function to Diagnostics.
type DiagnosticsFunc func(info Info, err error)

// Report implements Diagnostics.
func (f DiagnosticsFunc) Report(info Info, err error) {
	f(info, err)
}

// LogDiagnostics returns a sink that logs each report at warn level.
// A nil logger uses slog.Default() at report time.
func LogDiagnostics(logger *slog.Logger) Diagnostics {
	return DiagnosticsFunc(func(info Info, err error) {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		attrs := []slog.Attr{
			slog.String("cell", info.Name),
			slog.String("kind", string(info.Kind)),
			slog.String("error", err.Error()),
		}
		if code := cerrors.CodeOf(err); code != "" {
			attrs = append(attrs,
				slog.String("code", code),
				slog.String("category", string(cerrors.CategoryOf(err))),
			)
		}
		l.LogAttrs(context.Background(), slog.LevelWarn, "cell diagnostic", attrs...)
	})
}

// Instrumentation observes cell activity for metrics and tracing.
// Implementations must be safe for concurrent use and must not call back
// into the cell.
type Instrumentation interface {
	// Notified is called once per notification round.
	Notified(info Info, listeners int)

	// ListenerFailed is called when a listener panics.
	ListenerFailed(info Info, err error)

	// DemandChanged is called on the 0→1 (true) and 1→0 (false) listener
	// transitions.
	DemandChanged(info Info, active bool)

	// FetchStarted is called when a remote cell opens a fetch cycle.
	FetchStarted(info Info)

	// FetchSettled is called when a fetch cycle resolves or fails.
	FetchSettled(info Info, waiters int, err error)
}

// NopInstrumentation discards everything.
type NopInstrumentation struct{}

func (NopInstrumentation) Notified(Info, int)            {}
func (NopInstrumentation) ListenerFailed(Info, error)    {}
func (NopInstrumentation) DemandChanged(Info, bool)      {}
func (NopInstrumentation) FetchStarted(Info)             {}
func (NopInstrumentation) FetchSettled(Info, int, error) {}

var (
	defaultsMu      sync.RWMutex
	defaultDiag     Diagnostics     = LogDiagnostics(nil)
	defaultInstrmnt Instrumentation = NopInstrumentation{}
)

// SetDefaultDiagnostics sets the sink used by cells created without
// WithDiagnostics. A nil sink restores logging through slog.Default().
func SetDefaultDiagnostics(d Diagnostics) {
	if d == nil {
		d = LogDiagnostics(nil)
	}
	defaultsMu.Lock()
	defaultDiag = d
	defaultsMu.Unlock()
}

// SetDefaultInstrumentation sets the instrumentation used by cells created
// without WithInstrumentation. Nil disables it.
func SetDefaultInstrumentation(i Instrumentation) {
	if i == nil {
		i = NopInstrumentation{}
	}
	defaultsMu.Lock()
	defaultInstrmnt = i
	defaultsMu.Unlock()
}

// Option configures a cell at construction.
type Option func(*options)

type options struct {
	name string
	diag Diagnostics
	inst Instrumentation
}

// WithName names the cell in diagnostics and traces.
// Unnamed cells are called "<kind>-<id>".
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithDiagnostics routes the cell's reports to d.
func WithDiagnostics(d Diagnostics) Option {
	return func(o *options) {
		o.diag = d
	}
}

// WithLogger logs the cell's reports through logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.diag = LogDiagnostics(logger)
	}
}

// WithInstrumentation attaches metrics or tracing to the cell.
func WithInstrumentation(i Instrumentation) Option {
	return func(o *options) {
		o.inst = i
	}
}

func applyOptions(kind Kind, opts []Option) (Info, Diagnostics, Instrumentation) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	defaultsMu.RLock()
	if o.diag == nil {
		o.diag = defaultDiag
	}
	if o.inst == nil {
		o.inst = defaultInstrmnt
	}
	defaultsMu.RUnlock()

	info := Info{ID: nextID(), Kind: kind, Name: o.name}
	if info.Name == "" {
		info.Name = fmt.Sprintf("%s-%d", kind, info.ID)
	}
	return info, o.diag, o.inst
}

// diagnostic builds the coded error reported for a sentinel.
func diagnostic(code string, info Info, err error) error {
	return cerrors.New(code).WithCell(info.Name).Wrap(err)
}

// recovered converts a recovered panic value into an error wrapping sentinel.
func recovered(sentinel error, r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return fmt.Errorf("%w: %v", sentinel, r)
}
