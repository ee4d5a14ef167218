// Package cli implements the stackcollector command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/stackcollector/stackcollector/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logPretty  bool
}

// NewRootCmd creates the stackcollector root command with every subcommand.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "stackcollector",
		Short: "Sampling profiler collector and flame graph visualizer",
		Long: `Collect stack samples from running processes and explore them as flame graphs.

Processes embed the sampler (pkg/sampler), which serves its counts over HTTP.
The collector polls every host and port on an interval and appends the counts
to a local store. The visualizer renders any time window of the store as a
flame graph.

Examples:
  # Poll two emitters on a single host every 30 seconds
  stackcollector collector --host localhost --ports 16384..16385 --interval 30s

  # Serve flame graphs of the same store
  stackcollector visualizer --port 5555

  # Both in one process
  stackcollector run

  # Print the tree of the last hour
  stackcollector query --from 2026-10-19T09:00:00Z --threshold 0.01`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default: $STACKCOLLECTOR_CONFIG)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	flags.BoolVar(&opts.logPretty, "log-pretty", true, "Human-readable console logs")

	cmd.AddCommand(newCollectorCmd(opts))
	cmd.AddCommand(newVisualizerCmd(opts))
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newQueryCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("stackcollector version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}
