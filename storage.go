package datatable

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/datatable/internal/config"
	"github.com/vango-dev/datatable/pkg/middleware"
	"github.com/vango-dev/datatable/pkg/pref"
	"github.com/vango-dev/datatable/pkg/pref/store"
)

// Storage is a configured preference backend, instrumented and ready to be
// passed as features.Config.Storage.
type Storage struct {
	Raw    pref.RawStorage
	Logger *slog.Logger

	backend string
	closer  io.Closer
}

// Backend names the configured backend.
func (s *Storage) Backend() string { return s.backend }

// Close releases the backend.
func (s *Storage) Close() error {
	return s.closer.Close()
}

// StorageOption configures OpenStorage.
type StorageOption func(*storageOptions)

type storageOptions struct {
	registry  prometheus.Registerer
	logOutput io.Writer
	tracing   []middleware.OTelOption
}

// WithRegistry registers storage metrics with reg instead of the default
// Prometheus registerer. Metrics can be registered once per registry, so
// open a second storage against a different one.
func WithRegistry(reg prometheus.Registerer) StorageOption {
	return func(o *storageOptions) {
		o.registry = reg
	}
}

// WithLogOutput sets where the configured logger writes. Default: stderr.
func WithLogOutput(w io.Writer) StorageOption {
	return func(o *storageOptions) {
		o.logOutput = w
	}
}

// WithTracing passes options to the tracing middleware.
func WithTracing(opts ...middleware.OTelOption) StorageOption {
	return func(o *storageOptions) {
		o.tracing = append(o.tracing, opts...)
	}
}

// OpenStorage loads datatable.json (or datatable.yaml) from dir, opens the
// configured backend and wraps it with metrics and tracing.
func OpenStorage(ctx context.Context, dir string, opts ...StorageOption) (*Storage, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	return openStorage(ctx, cfg, opts...)
}

func openStorage(ctx context.Context, cfg *config.Config, opts ...StorageOption) (*Storage, error) {
	o := storageOptions{
		registry:  prometheus.DefaultRegisterer,
		logOutput: os.Stderr,
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := cfg.Logger(o.logOutput)
	opened, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	backend := string(cfg.Storage.Backend)
	metricOpts := []middleware.MetricsOption{
		middleware.WithRegistry(o.registry),
		middleware.WithNamespace(cfg.Metrics.Namespace),
	}
	if cfg.Metrics.Subsystem != "" {
		metricOpts = append(metricOpts, middleware.WithSubsystem(cfg.Metrics.Subsystem))
	}
	tracing := append([]middleware.OTelOption{middleware.WithBackend(backend)}, o.tracing...)

	raw := middleware.Chain(opened.Raw,
		middleware.NewMetrics(metricOpts...).Middleware(backend),
		middleware.Tracing(tracing...),
	)

	logger.Info("preference storage opened",
		slog.String("backend", backend),
		slog.String("config", cfg.Path()))

	return &Storage{
		Raw:     raw,
		Logger:  logger,
		backend: backend,
		closer:  opened,
	}, nil
}
