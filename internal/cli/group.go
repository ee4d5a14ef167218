package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/stackcollector/stackcollector/internal/collector"
	"github.com/stackcollector/stackcollector/internal/config"
	"github.com/stackcollector/stackcollector/internal/constants"
	"github.com/stackcollector/stackcollector/internal/poller"
	"github.com/stackcollector/stackcollector/internal/store"
	"github.com/stackcollector/stackcollector/internal/visualizer"
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// addCollector adds the poll loop over every configured target to g.
func addCollector(ctx context.Context, g *run.Group, cfg *config.Config, reg prometheus.Registerer, logger zerolog.Logger) error {
	ports, err := config.ParsePorts(cfg.Collector.Ports)
	if err != nil {
		return fmt.Errorf("invalid ports: %w", err)
	}
	c := collector.New(collector.Config{
		Store:      storeOptions(cfg, logger),
		Timeout:    cfg.Collector.Timeout,
		Registerer: reg,
		Logger:     logger,
	})

	cp := collector.NewPoller(c, collector.Targets(cfg.Collector.Hosts, ports))

	p := poller.NewBasePoller(ctx, poller.Config{
		Name:         "collector",
		PollInterval: cfg.Collector.Interval,
		Logger:       logger,
	})

	logger.Info().
		Str("dbpath", cfg.Store.Path).
		Str("engine", cfg.Store.Engine).
		Int("targets", len(cp.Targets())).
		Msg("Starting collector")

	g.Add(
		func() error {
			if err := p.Start(cp); err != nil {
				return err
			}
			<-p.Done()
			return nil
		},
		func(error) {
			_ = p.Stop()
		},
	)
	return nil
}

// addVisualizer binds the visualizer and adds it to g.
func addVisualizer(g *run.Group, cfg *config.Config, reg prometheus.Gatherer, logger zerolog.Logger) (*visualizer.Server, error) {
	srv := visualizer.New(visualizer.Config{
		Host:         cfg.Visualizer.Host,
		Port:         cfg.Visualizer.Port,
		Source:       store.NewReader(storeOptions(cfg, logger)),
		QueryTimeout: cfg.Visualizer.QueryTimeout,
		Gatherer:     reg,
		Logger:       logger,
	})
	if err := srv.Listen(); err != nil {
		return nil, err
	}

	g.Add(srv.Serve, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, nil
}

// addMetricsServer serves /metrics on addr when addr is set.
func addMetricsServer(g *run.Group, addr string, reg prometheus.Gatherer, logger zerolog.Logger) error {
	if addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
	}

	g.Add(
		func() error {
			logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		},
		func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(ctx)
		},
	)
	return nil
}

// runGroup adds the signal handler and runs g until an actor returns. A
// shutdown caused by a signal or ctx is not an error.
func runGroup(ctx context.Context, g *run.Group, logger zerolog.Logger) error {
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err := g.Run()

	var sigErr run.SignalError
	switch {
	case errors.As(err, &sigErr):
		logger.Info().Str("signal", sigErr.Signal.String()).Msg("Shutting down")
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}
