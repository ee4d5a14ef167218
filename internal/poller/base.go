// Package poller runs a poll function repeatedly until stopped.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Poller defines the work done on every cycle.
type Poller interface {
	// PollOnce performs a single polling cycle. An error is logged and the
	// loop continues.
	PollOnce(ctx context.Context) error
}

// PollFunc adapts a function to the Poller interface.
type PollFunc func(ctx context.Context) error

// PollOnce calls f(ctx).
func (f PollFunc) PollOnce(ctx context.Context) error {
	return f(ctx)
}

// Config contains configuration for a poller.
type Config struct {
	// Name is the poller name for logging (e.g., "collector").
	Name string

	// PollInterval is the pause between the end of one cycle and the start of
	// the next.
	PollInterval time.Duration

	// Logger is the logger to use for this poller.
	Logger zerolog.Logger
}

// BasePoller manages the polling loop and its lifecycle.
type BasePoller struct {
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
	pollInterval time.Duration
	logger       zerolog.Logger
	name         string
	cycles       int64
}

// NewBasePoller creates a new base poller.
// The parent context is used for lifecycle management.
func NewBasePoller(parentCtx context.Context, config Config) *BasePoller {
	ctx, cancel := context.WithCancel(parentCtx)

	return &BasePoller{
		ctx:          ctx,
		cancel:       cancel,
		pollInterval: config.PollInterval,
		logger:       config.Logger.With().Str("poller", config.Name).Logger(),
		name:         config.Name,
	}
}

// Start begins the polling loop in a goroutine. Starting a running poller is
// a no-op.
func (b *BasePoller) Start(poller Poller) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}

	b.logger.Info().
		Dur("poll_interval", b.pollInterval).
		Msg("Starting poller")

	b.wg.Add(1)
	go b.pollLoop(poller)

	b.running = true
	return nil
}

// Stop stops the polling loop and waits for the current cycle to finish.
// Stopping a poller that was never started still closes Done, and a later
// Start exits at once.
func (b *BasePoller) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		b.cancel()
		return nil
	}

	b.logger.Info().Msg("Stopping poller")

	b.cancel()
	b.wg.Wait()

	b.running = false
	return nil
}

// Done is closed once the poller is stopped or its parent context ends.
func (b *BasePoller) Done() <-chan struct{} {
	return b.ctx.Done()
}

func (b *BasePoller) isRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// pollLoop runs a cycle immediately, then again PollInterval after each cycle
// completes. A slow cycle delays the next one instead of overlapping it.
func (b *BasePoller) pollLoop(poller Poller) {
	defer b.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-timer.C:
			b.cycles++
			if err := poller.PollOnce(b.ctx); err != nil {
				b.logger.Error().Err(err).Int64("cycle", b.cycles).Msg("Poll failed")
			}
			timer.Reset(b.pollInterval)
		}
	}
}
