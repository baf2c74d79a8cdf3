// Package daemon wires a loaded config into a running server: the model
// store, instance pool, event bus, tracer, and HTTP listener, with graceful
// shutdown on SIGINT/SIGTERM.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/hearthai/hearth/pkg/config"
	"github.com/hearthai/hearth/pkg/engine"
	"github.com/hearthai/hearth/pkg/events"
	"github.com/hearthai/hearth/pkg/hearth"
	"github.com/hearthai/hearth/pkg/herrors"
	"github.com/hearthai/hearth/pkg/httpapi"
	"github.com/hearthai/hearth/pkg/modelspec"
	"github.com/hearthai/hearth/pkg/pool"
	"github.com/hearthai/hearth/pkg/store"
)

// Daemon owns every long-lived component a running server needs: the model
// store, instance pool, HTTP listener, and (optionally) an OTLP exporter.
type Daemon struct {
	cfg *config.Config

	store    *store.Store
	pool     *pool.Pool
	bus      *events.Bus
	srv      *hearth.Server
	server   *http.Server
	shutdown func(context.Context) error
}

// New loads cfg from path and constructs a Daemon ready to Serve.
func New(path string) (*Daemon, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

// NewWithConfig constructs a Daemon from an already-loaded config, wiring the
// store, pool, event bus, tracer, and router but not yet binding a listener.
func NewWithConfig(cfg *config.Config) (*Daemon, error) {
	configureLogging(cfg.Log)

	st, err := store.New(store.Options{
		ModelsRoot:          cfg.ModelsPath,
		DownloadConcurrency: cfg.DownloadConcurrency,
		OnStatusChange: func(modelID string, status store.Status) {
			slog.Info("model status changed", "model", modelID, "status", status)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("constructing store: %w", err)
	}
	for _, spec := range cfg.Models {
		if err := st.Register(spec); err != nil {
			return nil, fmt.Errorf("registering model %s: %w", spec.ID, err)
		}
	}

	bus := events.NewBus()

	tracer, shutdownTracer, err := newTracer(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("constructing tracer: %w", err)
	}

	p := pool.New(pool.Options{
		Store:         st,
		EngineFactory: buildEngineFactory(),
		Concurrency:   cfg.Concurrency,
		Lifecycle: pool.Lifecycle{
			OnInstanceCreated: func(modelID, uid string) {
				bus.Publish(events.InstanceCreatedEvent{ModelID: modelID, UID: uid, Time: time.Now()})
			},
			OnInstanceDisposed: func(modelID, uid string) {
				bus.Publish(events.InstanceDisposedEvent{ModelID: modelID, UID: uid, Time: time.Now()})
			},
		},
	})

	srv := hearth.New(hearth.Options{Store: st, Pool: p, Events: bus, Tracer: tracer})
	router := httpapi.NewRouter(srv, st)

	return &Daemon{
		cfg:      cfg,
		store:    st,
		pool:     p,
		bus:      bus,
		srv:      srv,
		shutdown: shutdownTracer,
		server: &http.Server{
			Addr:         cfg.Listen,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  2 * time.Minute,
		},
	}, nil
}

// Serve prepares every declared model per its effective preparation mode,
// then listens until ctx is cancelled or a SIGINT/SIGTERM arrives, draining
// in-flight requests before returning.
func (d *Daemon) Serve(ctx context.Context) error {
	if err := d.store.PrepareAll(ctx); err != nil {
		slog.Error("model preparation failed", "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", d.server.Addr)
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
	case <-sigCh:
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return d.Close(shutdownCtx)
}

// Close drains the HTTP listener, disposes every pooled instance, and flushes
// the tracer exporter.
func (d *Daemon) Close(ctx context.Context) error {
	var errs []error
	if err := d.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := d.srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pool shutdown: %w", err))
	}
	if d.shutdown != nil {
		if err := d.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// buildEngineFactory returns the pool.EngineFactory resolving a ModelSpec's
// declared Engine name to a concrete adapter. Only the composite adapter
// (engine name "custom" or "composite") is built in: wiring a real weights-loading backend (llama.cpp,
// ONNX Runtime, etc.) is left to callers with access to those native
// libraries, per spec's scope as an orchestration layer over adapters rather
// than a bundled inference runtime.
func buildEngineFactory() pool.EngineFactory {
	return func(spec modelspec.ModelSpec) (engine.Engine, error) {
		switch spec.Engine {
		case "custom", "composite":
			return engine.NewCompositeEngine(engine.CompositeRoute{}), nil
		default:
			return nil, herrors.NewLoadError(spec.ID, "no engine adapter registered for \""+spec.Engine+"\"", nil)
		}
	}
}

func configureLogging(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// newTracer builds an OTLP/HTTP span exporter when cfg.OTLPEndpoint is set,
// otherwise a no-op tracer. The returned shutdown func flushes and closes the
// exporter; it is a no-op for the no-op tracer.
func newTracer(cfg config.TracingConfig) (trace.Tracer, func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		return noop.NewTracerProvider().Tracer("hearth"), func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("constructing otlp exporter: %w", err)
	}

	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName("hearth"))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider.Tracer("hearth"), provider.Shutdown, nil
}
