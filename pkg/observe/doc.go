// Package observe provides cell.Instrumentation implementations backed by
// Prometheus and OpenTelemetry.
//
// Metrics and tracing are attached per cell with cell.WithInstrumentation,
// or for every new cell with cell.SetDefaultInstrumentation:
//
//	reg := prometheus.NewRegistry()
//	cell.SetDefaultInstrumentation(observe.Multi(
//	    observe.Prometheus(observe.WithRegistry(reg)),
//	    observe.Tracing(observe.WithTracerName("inventory")),
//	))
//
// The tracer uses the global OpenTelemetry tracer provider unless one is
// passed with WithTracerProvider.
package observe
