package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stackcollector/stackcollector/internal/config"
	cleanup "github.com/stackcollector/stackcollector/internal/errors"
	"github.com/stackcollector/stackcollector/internal/flamegraph"
	"github.com/stackcollector/stackcollector/internal/store"
	"github.com/stackcollector/stackcollector/internal/visualizer"
)

type queryFlags struct {
	storeFlags
	from      string
	until     string
	threshold float64
	pprofOut  string
}

func newQueryCmd(opts *globalOptions) *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the flame graph tree of a time window",
		Long: `Print the call tree of the store as JSON, the same document the
visualizer serves on /data. Times are unix seconds or RFC3339; an empty bound
is unbounded.

With --pprof the window is written as a gzipped pprof profile instead, readable
by "go tool pprof".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, opts, func(cfg *config.Config) {
				flags.storeFlags.apply(cmd.Flags(), cfg)
			})
			if err != nil {
				return err
			}

			req, err := flags.request()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Visualizer.QueryTimeout)
			defer cancel()

			src := store.NewReader(storeOptions(cfg, logger))

			if flags.pprofOut != "" {
				return writeProfile(ctx, src, req.Window, flags.pprofOut)
			}

			tree, err := flamegraph.Query(ctx, src, req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tree)
		},
	}

	flags.storeFlags.register(cmd.Flags())
	cmd.Flags().StringVar(&flags.from, "from", "", "Window start (unix seconds or RFC3339)")
	cmd.Flags().StringVar(&flags.until, "until", "", "Window end, inclusive (unix seconds or RFC3339)")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", 0, "Prune children at or below this fraction of the total")
	cmd.Flags().StringVar(&flags.pprofOut, "pprof", "", "Write a gzipped pprof profile to this file instead")

	return cmd
}

func (f *queryFlags) request() (flamegraph.Request, error) {
	from, err := visualizer.ParseTime(f.from)
	if err != nil {
		return flamegraph.Request{}, fmt.Errorf("invalid --from: %w", err)
	}
	until, err := visualizer.ParseTime(f.until)
	if err != nil {
		return flamegraph.Request{}, fmt.Errorf("invalid --until: %w", err)
	}

	req := flamegraph.Request{
		Window:    store.Window{From: from, Until: until},
		Threshold: f.threshold,
	}
	return req, req.Validate()
}

func writeProfile(ctx context.Context, src flamegraph.Scanner, window store.Window, path string) (err error) {
	p, err := flamegraph.Profile(ctx, src, window)
	if err != nil {
		return err
	}

	//nolint:gosec // G304: Path is chosen by the operator.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create profile file: %w", err)
	}
	defer cleanup.CloseInto(&err, f)

	if err := p.Write(f); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}
