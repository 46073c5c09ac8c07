// Package bootstrap wires the cart service's startup decisions together:
// backend selection and initialization, then tracing.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/boutique/cartservice/internal/cartstore"
	"github.com/boutique/cartservice/internal/config"
	"github.com/boutique/cartservice/internal/telemetry"
)

// Runtime holds the process-wide dependencies produced at startup. They are
// handed to request handlers explicitly.
type Runtime struct {
	Config      *config.Config
	BackendKind cartstore.Kind
	Store       cartstore.Store
	Exporter    telemetry.ExporterConfig
	Telemetry   *telemetry.Telemetry

	ready atomic.Bool
}

type Option func(*options)

type options struct {
	registry *telemetry.Registry
	logger   *slog.Logger
}

// WithRegistry overrides where the tracer provider is registered.
func WithRegistry(r *telemetry.Registry) Option {
	return func(o *options) { o.registry = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Start runs the startup sequence against src. The storage backend is
// initialized before tracing is set up; if it fails, nothing is registered
// and the error is returned. Every returned error is fatal.
func Start(ctx context.Context, src config.Source, opts ...Option) (*Runtime, error) {
	o := options{
		registry: telemetry.GlobalRegistry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger

	cfg, err := config.Load(src)
	if err != nil {
		return nil, err
	}

	kind, store := cartstore.Select(src)
	if kind == cartstore.KindEphemeral {
		log.Info("Redis address not set, starting with the local cart store")
	} else {
		log.Info("Using Redis cart store", "addr", cfg.RedisAddr)
	}

	if err := cartstore.Initialize(ctx, kind, store, log, cfg.RedisInitTimeout); err != nil {
		return nil, errors.Join(err, store.Close())
	}

	exporter := telemetry.SelectExporter(src)
	log.Info("Trace exporter selected", "exporter", exporter.Kind.String())

	tel, err := telemetry.Bootstrap(ctx, telemetry.Options{
		Exporter:   exporter,
		Descriptor: telemetry.BuildDescriptor(cfg.ServiceName, exporter.Kind),
		Store:      store,
		Registry:   o.registry,
		Logger:     log,
		Disabled:   cfg.DisableTracing,
	})
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	rt := &Runtime{
		Config:      cfg,
		BackendKind: kind,
		Store:       store,
		Exporter:    exporter,
		Telemetry:   tel,
	}
	rt.ready.Store(true)
	return rt, nil
}

// Ready reports whether startup completed.
func (r *Runtime) Ready() bool {
	return r != nil && r.ready.Load()
}

// Shutdown flushes tracing, then releases the store.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.ready.Store(false)
	return errors.Join(r.Telemetry.Shutdown(ctx), r.Store.Close())
}
