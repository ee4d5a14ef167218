package cli

import (
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stackcollector/stackcollector/internal/config"
)

type collectorFlags struct {
	storeFlags
	hosts       []string
	ports       string
	interval    time.Duration
	metricsAddr string
}

func (f *collectorFlags) register(fs *pflag.FlagSet) {
	f.storeFlags.register(fs)
	fs.StringArrayVar(&f.hosts, "host", nil, "Host to poll (repeatable)")
	fs.StringVar(&f.ports, "ports", "", `Ports to poll on every host: "n..m", "a,b,c" or "x"`)
	fs.DurationVar(&f.interval, "interval", 0, "Pause between collection cycles")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

func (f *collectorFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	f.storeFlags.apply(fs, cfg)
	if fs.Changed("host") {
		cfg.Collector.Hosts = f.hosts
	}
	if fs.Changed("ports") {
		cfg.Collector.Ports = f.ports
	}
	if fs.Changed("interval") {
		cfg.Collector.Interval = f.interval
	}
	if fs.Changed("metrics-addr") {
		cfg.Collector.MetricsAddr = f.metricsAddr
	}
}

func newCollectorCmd(opts *globalOptions) *cobra.Command {
	flags := &collectorFlags{}

	cmd := &cobra.Command{
		Use:   "collector",
		Short: "Poll emitters and append their samples to the store",
		Long: `Poll every host on every port once per interval. Each poll drains the
emitter's counters and appends one record per stack to the store.

Unreachable emitters are logged and skipped until the next cycle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, opts, func(cfg *config.Config) {
				flags.apply(cmd.Flags(), cfg)
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			reg := newRegistry()
			g := &run.Group{}

			if err := addCollector(ctx, g, cfg, reg, logger); err != nil {
				return err
			}
			if err := addMetricsServer(g, cfg.Collector.MetricsAddr, reg, logger); err != nil {
				return err
			}

			return runGroup(ctx, g, logger)
		},
	}

	flags.register(cmd.Flags())
	return cmd
}
