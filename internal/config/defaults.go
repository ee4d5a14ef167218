package config

import "github.com/stackcollector/stackcollector/internal/constants"

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path:   constants.DefaultDBPath,
			Engine: "duckdb",
		},
		Collector: CollectorConfig{
			Hosts:    []string{constants.DefaultCollectHost},
			Ports:    "16384",
			Interval: constants.DefaultCollectInterval,
			Timeout:  constants.DefaultCollectTimeout,
		},
		Visualizer: VisualizerConfig{
			Host:         constants.DefaultVisualizerHost,
			Port:         constants.DefaultVisualizerPort,
			QueryTimeout: constants.DefaultQueryTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
