package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stackcollector/stackcollector/internal/config"
	"github.com/stackcollector/stackcollector/internal/logging"
	"github.com/stackcollector/stackcollector/internal/store"
)

// storeFlags are the store location flags of every command that opens it.
type storeFlags struct {
	dbPath string
	engine string
}

func (f *storeFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.dbPath, "dbpath", "", "Path of the stack store")
	fs.StringVar(&f.engine, "engine", "", "Store engine: duckdb or log")
}

func (f *storeFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("dbpath") {
		cfg.Store.Path = f.dbPath
	}
	if fs.Changed("engine") {
		cfg.Store.Engine = f.engine
	}
}

// resolveConfig layers defaults, the config file, the environment, the
// global flags and finally the command's own flags through apply.
func resolveConfig(cmd *cobra.Command, opts *globalOptions, apply func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(config.ResolvePath(opts.configPath))
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if cmd.Flags().Changed("log-pretty") {
		cfg.Logging.Pretty = opts.logPretty
	}
	if apply != nil {
		apply(cfg)
	}
	return cfg, nil
}

// loadConfig resolves and validates the configuration, then builds the
// process logger from it.
func loadConfig(cmd *cobra.Command, opts *globalOptions, apply func(*config.Config)) (*config.Config, zerolog.Logger, error) {
	cfg, err := resolveConfig(cmd, opts, apply)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	return cfg, logger, nil
}

func storeOptions(cfg *config.Config, logger zerolog.Logger) store.Options {
	return store.Options{
		Path:   cfg.Store.Path,
		Engine: cfg.Store.Engine,
		Logger: logger,
	}
}
