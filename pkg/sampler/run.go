package sampler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Default emitter address.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 16384
)

// RunConfig contains the options of Run.
type RunConfig struct {
	// Host is the emitter bind address (default: 0.0.0.0).
	Host string

	// Port is the emitter port (default: 16384). Use -1 for a random port.
	Port int

	// Interval is the sampling interval (default: 5ms).
	Interval time.Duration

	// Logger is the logger instance (optional, defaults to zerolog.Nop()).
	Logger zerolog.Logger
}

// Profiler is a running sampler together with its emitter.
type Profiler struct {
	sampler *Sampler
	emitter *Emitter
	done    chan struct{}
	once    sync.Once
	logger  zerolog.Logger
}

// Run starts sampling the current process and serves the samples over HTTP.
// Both are stopped when ctx is done or Close is called.
func Run(ctx context.Context, config RunConfig) (*Profiler, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	host := config.Host
	if host == "" {
		host = DefaultHost
	}

	port := config.Port
	switch {
	case port == 0:
		port = DefaultPort
	case port < 0:
		port = 0
	}

	logger := config.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	s := New(Config{Interval: config.Interval, Logger: logger})
	if err := s.Start(); err != nil {
		return nil, fmt.Errorf("failed to start sampler: %w", err)
	}

	e := NewEmitter(s, host, port, logger)
	if err := e.Start(); err != nil {
		s.Stop()
		return nil, fmt.Errorf("failed to start emitter: %w", err)
	}

	p := &Profiler{
		sampler: s,
		emitter: e,
		done:    make(chan struct{}),
		logger:  logger,
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = p.Close()
		case <-p.done:
		}
	}()

	return p, nil
}

// Sampler returns the running sampler.
func (p *Profiler) Sampler() *Sampler {
	return p.sampler
}

// Addr returns the emitter's listen address.
func (p *Profiler) Addr() string {
	return p.emitter.Addr()
}

// Close stops the emitter and the sampler. It is idempotent.
func (p *Profiler) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		err = p.emitter.Close()
		p.sampler.Stop()
		if err != nil {
			p.logger.Error().Err(err).Msg("Failed to stop emitter")
		}
	})
	return err
}
