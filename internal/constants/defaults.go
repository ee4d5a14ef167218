// Package constants defines shared configuration constants and defaults.
package constants

import "time"

// Paths.
const (
	// ConfigEnvVar names the environment variable holding the config file path.
	ConfigEnvVar = "STACKCOLLECTOR_CONFIG"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "STACKCOLLECTOR_"

	// DefaultDBPath is where the store lives unless configured otherwise.
	DefaultDBPath = "/var/lib/stackcollector/db"
)

// Ports.
const (
	// DefaultEmitterPort is the port a profiled process serves samples on.
	DefaultEmitterPort = 16384

	// DefaultVisualizerPort is the port of the flame graph server.
	DefaultVisualizerPort = 5555

	// DefaultMaxVisualizerConns caps concurrent visualizer connections.
	DefaultMaxVisualizerConns = 64
)

// Hosts.
const (
	// DefaultCollectHost is the host polled when none is configured.
	DefaultCollectHost = "localhost"

	// DefaultVisualizerHost is the address the visualizer binds to.
	DefaultVisualizerHost = "0.0.0.0"
)

// Timeouts and intervals.
const (
	// DefaultCollectInterval is the sleep between two collection cycles.
	DefaultCollectInterval = 60 * time.Second

	// DefaultCollectTimeout bounds a single request to an emitter.
	DefaultCollectTimeout = 10 * time.Second

	// DefaultQueryTimeout bounds a visualizer query, lock wait included.
	DefaultQueryTimeout = 30 * time.Second

	// DefaultShutdownTimeout bounds graceful HTTP server shutdown.
	DefaultShutdownTimeout = 5 * time.Second

	// DefaultReadHeaderTimeout bounds reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
)
