// Package middleware provides observability middleware for preference storage.
//
// A Middleware wraps a pref.RawStorage and keeps its optional capabilities:
// wrapping a store that reads synchronously yields a store that still does.
//
// # OpenTelemetry Middleware
//
// Tracing creates a span for every storage operation, named
// "datatable.pref.<op>", with the key and backend as attributes. Errors are
// recorded on the span and set its status.
//
//	raw := middleware.Chain(store.NewMemory(),
//	    middleware.Tracing(middleware.WithTracerName("admin")),
//	)
//
// # Prometheus Metrics
//
// Metrics collects:
//   - datatable_pref_operations_total{op,backend,status}
//   - datatable_pref_operation_duration_seconds{op,backend}
//
//	m := middleware.NewMetrics(middleware.WithRegistry(reg))
//	raw := middleware.Chain(pg, m.Middleware("postgres"))
//
// Then expose metrics:
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package middleware
