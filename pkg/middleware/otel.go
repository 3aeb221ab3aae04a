package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/datatable/pkg/pref"
)

// Default tracer name for preference storage.
const defaultTracerName = "github.com/vango-dev/datatable/pref"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer.
	TracerName string

	// TracerProvider overrides the global provider.
	TracerProvider trace.TracerProvider

	// Backend is recorded as the datatable.backend attribute.
	Backend string

	// IncludeKey records the preference key. Keys can embed user ids, so this
	// is enabled only on request.
	IncludeKey bool
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithBackend sets the backend attribute.
func WithBackend(backend string) OTelOption {
	return func(c *OTelConfig) {
		c.Backend = backend
	}
}

// WithIncludeKey enables recording the preference key.
func WithIncludeKey(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeKey = include
	}
}

// Tracing creates middleware that traces every storage operation.
//
// The tracer uses the global OpenTelemetry tracer provider unless one is
// given. Configure it in your main() before building tables:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func Tracing(opts ...OTelOption) Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.TracerProvider != nil {
		tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}

	return func(raw pref.RawStorage) pref.RawStorage {
		return wrap(raw, func(ctx context.Context, op, key string, call func(context.Context) error) error {
			attrs := []attribute.KeyValue{
				attribute.String("datatable.op", op),
			}
			if config.Backend != "" {
				attrs = append(attrs, attribute.String("datatable.backend", config.Backend))
			}
			if config.IncludeKey {
				attrs = append(attrs, attribute.String("datatable.key", key))
			}

			spanCtx, span := tracer.Start(ctx, "datatable.pref."+op,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			err := call(spanCtx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		})
	}
}
