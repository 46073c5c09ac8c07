package telemetry

import (
	"errors"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/boutique/cartservice/internal/errors"
)

var ErrAlreadyRegistered = errors.New("telemetry: tracer provider already registered")

// Registry accepts a single tracer provider for its lifetime.
type Registry struct {
	registered atomic.Bool
	install    func(trace.TracerProvider, propagation.TextMapPropagator)
}

// NewRegistry returns a registry that hands the provider to install.
func NewRegistry(install func(trace.TracerProvider, propagation.TextMapPropagator)) *Registry {
	return &Registry{install: install}
}

// GlobalRegistry installs into the otel package globals, which third-party
// instrumentation falls back to.
var GlobalRegistry = NewRegistry(func(tp trace.TracerProvider, p propagation.TextMapPropagator) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(p)
})

// Register installs tp. Any call after the first fails with a registration
// conflict and leaves the first provider in place.
func (r *Registry) Register(tp trace.TracerProvider, p propagation.TextMapPropagator) error {
	if !r.registered.CompareAndSwap(false, true) {
		return apperrors.NewRegistrationConflictError(ErrAlreadyRegistered)
	}
	r.install(tp, p)
	return nil
}

func (r *Registry) Registered() bool {
	return r.registered.Load()
}
