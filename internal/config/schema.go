package config

import "time"

// Config is the complete stackcollector configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Collector  CollectorConfig  `yaml:"collector"`
	Visualizer VisualizerConfig `yaml:"visualizer"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreConfig locates the persistent stack store.
type StoreConfig struct {
	// Path of the store file.
	Path string `yaml:"path" env:"STACKCOLLECTOR_DBPATH"`
	// Engine is "duckdb" or "log".
	Engine string `yaml:"engine" env:"STACKCOLLECTOR_ENGINE"`
}

// CollectorConfig configures the poll loop.
type CollectorConfig struct {
	// Hosts to poll. Every host is polled on every port.
	Hosts []string `yaml:"hosts" env:"STACKCOLLECTOR_HOSTS"`
	// Ports in port syntax: "n..m", "a,b,c" or "x".
	Ports string `yaml:"ports" env:"STACKCOLLECTOR_PORTS"`
	// Interval between two collection cycles.
	Interval time.Duration `yaml:"interval" env:"STACKCOLLECTOR_INTERVAL"`
	// Timeout of a single request to an emitter.
	Timeout time.Duration `yaml:"timeout" env:"STACKCOLLECTOR_TIMEOUT"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr" env:"STACKCOLLECTOR_METRICS_ADDR"`
}

// VisualizerConfig configures the flame graph server.
type VisualizerConfig struct {
	Host string `yaml:"host" env:"STACKCOLLECTOR_VISUALIZER_HOST"`
	Port int    `yaml:"port" env:"STACKCOLLECTOR_VISUALIZER_PORT"`
	// QueryTimeout bounds one /data or /profile request, lock wait included.
	QueryTimeout time.Duration `yaml:"query_timeout" env:"STACKCOLLECTOR_QUERY_TIMEOUT"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"STACKCOLLECTOR_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"STACKCOLLECTOR_LOG_PRETTY"`
}
