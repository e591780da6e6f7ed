package observe

import (
	"context"
	"sync"

	"github.com/vango-dev/cells/pkg/cell"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for cell spans.
const defaultTracerName = "cells"

// TracingConfig configures the OpenTelemetry instrumentation.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "cells").
	TracerName string

	// TracerProvider supplies the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider

	// AttributeExtractor adds custom attributes to every span.
	AttributeExtractor func(info cell.Info) []attribute.KeyValue
}

// TracingOption configures the OpenTelemetry instrumentation.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.TracerProvider = tp
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(info cell.Info) []attribute.KeyValue) TracingOption {
	return func(c *TracingConfig) {
		c.AttributeExtractor = extractor
	}
}

// Tracer records remote fetch cycles and listener failures as spans. It
// implements cell.Instrumentation.
type Tracer struct {
	tracer  trace.Tracer
	extract func(info cell.Info) []attribute.KeyValue

	mu    sync.Mutex
	spans map[uint64]trace.Span
}

var _ cell.Instrumentation = (*Tracer)(nil)

// Tracing creates the OpenTelemetry instrumentation.
//
// Spans:
//   - cells.fetch: one per fetch cycle, from the read that opened it until
//     it settles, with the number of waiting reads
//   - cells.listener_failure: an instant error span per panicking listener
func Tracing(opts ...TracingOption) *Tracer {
	config := TracingConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.TracerProvider != nil {
		tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}

	return &Tracer{
		tracer:  tracer,
		extract: config.AttributeExtractor,
		spans:   make(map[uint64]trace.Span),
	}
}

func (t *Tracer) attributes(info cell.Info) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("cell.name", info.Name),
		attribute.String("cell.kind", string(info.Kind)),
		attribute.Int64("cell.id", int64(info.ID)),
	}
	if t.extract != nil {
		attrs = append(attrs, t.extract(info)...)
	}
	return attrs
}

// FetchStarted implements cell.Instrumentation.
func (t *Tracer) FetchStarted(info cell.Info) {
	_, span := t.tracer.Start(context.Background(), "cells.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.attributes(info)...),
	)

	t.mu.Lock()
	if prev, ok := t.spans[info.ID]; ok {
		prev.End()
	}
	t.spans[info.ID] = span
	t.mu.Unlock()
}

// FetchSettled implements cell.Instrumentation.
func (t *Tracer) FetchSettled(info cell.Info, waiters int, err error) {
	t.mu.Lock()
	span, ok := t.spans[info.ID]
	delete(t.spans, info.ID)
	t.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.Int("cell.fetch.waiters", waiters))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ListenerFailed implements cell.Instrumentation.
func (t *Tracer) ListenerFailed(info cell.Info, err error) {
	_, span := t.tracer.Start(context.Background(), "cells.listener_failure",
		trace.WithAttributes(t.attributes(info)...),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
}

// Notified implements cell.Instrumentation.
func (t *Tracer) Notified(cell.Info, int) {}

// DemandChanged implements cell.Instrumentation.
func (t *Tracer) DemandChanged(info cell.Info, active bool) {}
