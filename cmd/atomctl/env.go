package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/vango-dev/atom/internal/config"
	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/internal/logging"
	"github.com/vango-dev/atom/internal/scenario"
	"github.com/vango-dev/atom/internal/snapshot"
	"github.com/vango-dev/atom/pkg/atom"
)

// env is everything a command needs to run one scenario.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *prometheus.Registry
	world   *scenario.World
}

func (g *globals) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return nil, err
	}

	if g.logLevel != "" {
		if _, err := logging.ParseLevel(g.logLevel); err != nil {
			return nil, errors.New("A400").WithDetail("--log-level").Wrap(err)
		}
		cfg.Log.Level = g.logLevel
	}
	return cfg, nil
}

// setup loads the config and scenario and builds the world. When restore
// is set the registry starts from that snapshot.
func (g *globals) setup(ctx context.Context, path, restore string, logOut io.Writer) (*env, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Logging(logOut))

	f, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []atom.RegistryOption{
		atom.WithLogger(logger),
		atom.WithTracer(otel.Tracer("github.com/vango-dev/atom/cmd/atomctl")),
		atom.WithIdleTimeout(cfg.IdleTimeout()),
		atom.WithMetrics(atom.NewMetrics(
			atom.WithNamespace(cfg.Metrics.Namespace),
			atom.WithSubsystem(cfg.Metrics.Subsystem),
			atom.WithRegisterer(metrics),
		)),
	}

	if restore != "" {
		store, err := snapshot.Open(cfg)
		if err != nil {
			return nil, err
		}
		values, err := store.Load(ctx, restore)
		if err != nil {
			return nil, err
		}
		logger.Info("restoring snapshot", "ref", restore, "atoms", len(values))
		opts = append(opts, atom.WithInitialValues(values...))
	}

	world, err := scenario.Build(f, atom.NewRegistry(opts...))
	if err != nil {
		return nil, err
	}
	logger.Debug("scenario built", "scenario", world.Name(), "atoms", len(world.Names()), "registry", world.Registry().ID())

	return &env{cfg: cfg, logger: logger, metrics: metrics, world: world}, nil
}
