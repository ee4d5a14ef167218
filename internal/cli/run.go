package cli

import (
	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/stackcollector/stackcollector/internal/config"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	cf := &collectorFlags{}
	vf := &visualizerFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the collector and the visualizer in one process",
		Long: `Run the collector and the visualizer together against the same store.
The visualizer also serves the collector metrics on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, opts, func(cfg *config.Config) {
				cf.apply(cmd.Flags(), cfg)
				vf.applyServer(cmd.Flags(), cfg)
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
			if _, err := addVisualizer(g, cfg, reg, logger); err != nil {
				return err
			}
			if err := addMetricsServer(g, cfg.Collector.MetricsAddr, reg, logger); err != nil {
				return err
			}

			return runGroup(ctx, g, logger)
		},
	}

	cf.register(cmd.Flags())
	vf.registerServer(cmd.Flags())
	return cmd
}
