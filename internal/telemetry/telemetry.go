package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/riandyrn/otelchi"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/boutique/cartservice/internal/cartstore"
)

// Options are the startup decisions Bootstrap composes.
type Options struct {
	Exporter   ExporterConfig
	Descriptor Descriptor

	// Store is the already initialized backend. When it implements
	// cartstore.Instrumentable its client is traced as well.
	Store cartstore.Store

	// Registry defaults to GlobalRegistry.
	Registry *Registry
	Logger   *slog.Logger

	// Disabled skips exporter construction and registration entirely.
	Disabled bool
}

// Telemetry is the tracing pipeline of the process. It is passed to the
// components that create spans instead of being looked up globally.
type Telemetry struct {
	Provider     trace.TracerProvider
	Propagator   propagation.TextMapPropagator
	Descriptor   Descriptor
	Exporter     ExporterKind
	Instrumented bool

	sdk *sdktrace.TracerProvider
}

// Bootstrap builds the tracer provider and registers it. It must run once,
// after the storage backend is initialized and before requests are served.
// Any error is fatal to startup.
func Bootstrap(ctx context.Context, opts Options) (*Telemetry, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	if opts.Disabled {
		log.Info("Tracing disabled")
		return &Telemetry{
			Provider:   noop.NewTracerProvider(),
			Propagator: newPropagator(),
			Descriptor: opts.Descriptor,
			Exporter:   opts.Exporter.Kind,
		}, nil
	}

	exp, err := NewSpanExporter(ctx, opts.Exporter)
	if err != nil {
		return nil, err
	}
	return bootstrap(ctx, opts, log, exp)
}

func bootstrap(ctx context.Context, opts Options, log *slog.Logger, exp sdktrace.SpanExporter) (*Telemetry, error) {
	res, err := opts.Descriptor.Resource(ctx)
	if err != nil {
		return nil, errors.Join(err, exp.Shutdown(ctx))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
	)

	t := &Telemetry{
		Provider:   tp,
		Propagator: newPropagator(),
		Descriptor: opts.Descriptor,
		Exporter:   opts.Exporter.Kind,
		sdk:        tp,
	}

	if inst, ok := opts.Store.(cartstore.Instrumentable); ok {
		if client := inst.ConnectionHandle(); client != nil {
			if err := redisotel.InstrumentTracing(client, redisotel.WithTracerProvider(tp)); err != nil {
				return nil, errors.Join(err, tp.Shutdown(ctx))
			}
			t.Instrumented = true
		}
	}

	registry := opts.Registry
	if registry == nil {
		registry = GlobalRegistry
	}
	if err := registry.Register(tp, t.Propagator); err != nil {
		return nil, errors.Join(err, tp.Shutdown(ctx))
	}

	log.Info("Tracing initialized",
		"exporter", t.Exporter.String(),
		"service_name", t.Descriptor.ServiceName,
		"instance_id", t.Descriptor.RunInstanceID,
		"backend_instrumented", t.Instrumented,
	)
	return t, nil
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// Tracer returns a tracer with the given name
func (t *Telemetry) Tracer(name string) trace.Tracer {
	return t.Provider.Tracer(name)
}

// Middleware returns a chi middleware that traces requests with this
// pipeline's provider, naming spans after the matched route. Paths listed in
// skip are not traced.
func (t *Telemetry) Middleware(routes chi.Routes, skip ...string) func(http.Handler) http.Handler {
	return otelchi.Middleware(t.Descriptor.ServiceName,
		otelchi.WithChiRoutes(routes),
		otelchi.WithTracerProvider(t.Provider),
		otelchi.WithPropagators(t.Propagator),
		otelchi.WithFilter(func(r *http.Request) bool {
			for _, p := range skip {
				if r.URL.Path == p {
					return false
				}
			}
			return true
		}),
	)
}

// ForceFlush exports any buffered spans.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t.sdk == nil {
		return nil
	}
	return t.sdk.ForceFlush(ctx)
}

// Shutdown flushes and stops the pipeline.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.sdk == nil {
		return nil
	}
	return t.sdk.Shutdown(ctx)
}
