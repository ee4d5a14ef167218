package sampler

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the default sampling interval.
const DefaultInterval = 5 * time.Millisecond

// ErrConfiguration is returned when a sampler cannot be armed.
var ErrConfiguration = errors.New("sampler configuration error")

// active guards the process-wide sampling slot. Only one sampler may be armed
// at a time, like runtime/pprof's CPU profile.
var active atomic.Bool

// Config contains sampler configuration options.
type Config struct {
	// Interval is the time between two samples (default: 5ms).
	Interval time.Duration

	// Logger is the logger instance (optional, defaults to zerolog.Nop()).
	Logger zerolog.Logger
}

// Sampler is a statistical stack sampler for low-overhead profiling of
// long-running processes. On every tick it captures the stack of each
// goroutine and counts how often every distinct stack has been seen.
type Sampler struct {
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	run     uint64 // incremented by every Start; ticks of older runs are dropped
	started time.Time
	counts  stackCounts

	capture goroutineCapture
}

// New creates a new sampler. The sampler is inert until Start is called.
func New(config Config) *Sampler {
	logger := config.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	interval := config.Interval
	if interval == 0 {
		interval = DefaultInterval
	}

	return &Sampler{
		interval: interval,
		logger:   logger.With().Str("component", "stack-sampler").Logger(),
		counts:   make(stackCounts),
	}
}

// Interval returns the sampling interval.
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// Start arms the sampling timer and records the start time.
// It fails with ErrConfiguration if the interval is not positive or if another
// sampler is already running in this process. Calling Start on a sampler that
// is already running is a no-op.
func (s *Sampler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrConfiguration, s.interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if !active.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: another sampler is already running in this process", ErrConfiguration)
	}

	s.started = time.Now()
	s.counts = make(stackCounts)
	s.running = true
	s.run++
	run := s.run
	s.timer = time.AfterFunc(s.interval, func() { s.tick(run) })

	s.logger.Debug().Dur("interval", s.interval).Msg("Stack sampler started")

	return nil
}

// Stop disarms the timer and clears all counters.
// It is idempotent and safe to call from deferred cleanup.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.timer.Stop()
		s.running = false
		active.Store(false)
		s.logger.Debug().Msg("Stack sampler stopped")
	}

	if !s.started.IsZero() {
		s.started = time.Now()
	}
	s.counts = make(stackCounts)
}

// Running reports whether the sampler is armed.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Started reports whether the sampler was ever started.
func (s *Sampler) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.started.IsZero()
}

// Reset sets the elapsed-time origin to now and clears all counters.
// The counter map is swapped, not cleared in place.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = time.Now()
	s.counts = make(stackCounts)
}

// OutputStats renders the current counters in the text protocol format.
// Returns an empty string if sampling was never started.
func (s *Sampler) OutputStats() string {
	if !s.Started() {
		return ""
	}
	return s.Snapshot(false).String()
}

// Snapshot captures the current statistics. When reset is true the counters
// are swapped out in the same critical section as the capture, so a tick is
// either part of this snapshot or of the next one, never both or neither.
func (s *Sampler) Snapshot(reset bool) Stats {
	now := time.Now()

	s.mu.Lock()
	started := s.started
	counts := s.counts
	if reset {
		s.started = now
		s.counts = make(stackCounts)
	} else {
		counts = counts.clone()
	}
	s.mu.Unlock()

	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = now.Sub(started)
	}

	return Stats{
		Elapsed:     elapsed,
		Granularity: s.interval,
		Stacks:      counts.render(),
	}
}

// tick samples every goroutine once and re-arms the timer. A tick armed by
// an earlier run, still in flight when Stop and Start were called, is dropped.
func (s *Sampler) tick(run uint64) {
	s.capture.mu.Lock()
	defer s.capture.mu.Unlock()

	keys := s.capture.sample()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.run != run {
		return
	}

	for _, key := range keys {
		s.counts[key]++
	}

	s.timer.Reset(s.interval)
}

// goroutineCapture reads goroutine stacks through runtime.GoroutineProfile,
// reusing its buffers between ticks. mu serializes ticks.
type goroutineCapture struct {
	mu        sync.Mutex
	records   []runtime.StackRecord
	keys      []stackKey
	selfEntry uintptr
}

// sample returns the raw stack of every goroutine except the one running the
// tick. The returned slice is reused by the next call.
func (c *goroutineCapture) sample() []stackKey {
	records := c.stacks()
	c.keys = c.keys[:0]
	for i := range records {
		if c.isSelf(records[i].Stack()) {
			continue
		}
		c.keys = append(c.keys, records[i].Stack0)
	}
	return c.keys
}

//go:noinline
func (c *goroutineCapture) stacks() []runtime.StackRecord {
	if c.selfEntry == 0 {
		pc := make([]uintptr, 1)
		if runtime.Callers(1, pc) == 1 {
			frame, _ := runtime.CallersFrames(pc).Next()
			c.selfEntry = frame.Entry
		}
	}

	for {
		n, ok := runtime.GoroutineProfile(c.records)
		if ok {
			return c.records[:n]
		}
		// More goroutines may start between two calls, overshoot by 10%.
		c.records = make([]runtime.StackRecord, int(float64(n)*1.1)+1)
	}
}

// isSelf reports whether the stack belongs to the goroutine running the tick.
func (c *goroutineCapture) isSelf(stack []uintptr) bool {
	frames := runtime.CallersFrames(stack)
	for {
		frame, more := frames.Next()
		if frame.Entry == c.selfEntry {
			return true
		}
		if !more {
			return false
		}
	}
}
