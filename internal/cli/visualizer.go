package cli

import (
	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stackcollector/stackcollector/internal/config"
)

type visualizerFlags struct {
	storeFlags
	host string
	port int
}

func (f *visualizerFlags) register(fs *pflag.FlagSet) {
	f.storeFlags.register(fs)
	f.registerServer(fs)
}

// registerServer registers only the web server flags, for commands that
// already carry the store flags.
func (f *visualizerFlags) registerServer(fs *pflag.FlagSet) {
	fs.StringVar(&f.host, "bind", "", "Address to bind the web server to")
	fs.IntVar(&f.port, "port", 0, "Web server port")
}

func (f *visualizerFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	f.storeFlags.apply(fs, cfg)
	f.applyServer(fs, cfg)
}

func (f *visualizerFlags) applyServer(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("bind") {
		cfg.Visualizer.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Visualizer.Port = f.port
	}
}

func newVisualizerCmd(opts *globalOptions) *cobra.Command {
	flags := &visualizerFlags{}

	cmd := &cobra.Command{
		Use:   "visualizer",
		Short: "Serve flame graphs of the store",
		Long: `Serve an interactive flame graph of the store.

Routes:
  /          flame graph page
  /data      tree JSON (?from=&until=&threshold=)
  /profile   gzipped pprof profile (?from=&until=)
  /metrics   Prometheus metrics
  /healthz   liveness`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, opts, func(cfg *config.Config) {
				flags.apply(cmd.Flags(), cfg)
			})
			if err != nil {
				return err
			}

			g := &run.Group{}
			if _, err := addVisualizer(g, cfg, newRegistry(), logger); err != nil {
				return err
			}

			return runGroup(cmd.Context(), g, logger)
		},
	}

	flags.register(cmd.Flags())
	return cmd
}
