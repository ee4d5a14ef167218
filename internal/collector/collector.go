// Package collector pulls samples from emitters and appends them to the store.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/stackcollector/stackcollector/internal/constants"
	cleanup "github.com/stackcollector/stackcollector/internal/errors"
	"github.com/stackcollector/stackcollector/internal/store"
	"github.com/stackcollector/stackcollector/pkg/sampler"
	"github.com/stackcollector/stackcollector/pkg/version"
)

var (
	// ErrTransport is returned when a target cannot be reached or answers
	// with a non-2xx status. The store is left untouched.
	ErrTransport = errors.New("transport error")

	// ErrSave is returned when fetched samples cannot be written to the store.
	ErrSave = errors.New("failed to save samples")
)

// Target is one sampled process.
type Target struct {
	Host string
	Port int
}

// String returns host:port.
func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// URL returns the emitter URL that snapshots and resets the target's samples.
func (t Target) URL() string {
	return "http://" + t.String() + "/?reset=true"
}

// Targets returns every host on every port, hosts outermost.
func Targets(hosts []string, ports []int) []Target {
	targets := make([]Target, 0, len(hosts)*len(ports))
	for _, h := range hosts {
		for _, p := range ports {
			targets = append(targets, Target{Host: h, Port: p})
		}
	}
	return targets
}

// Config configures a Collector.
type Config struct {
	// Store is where collected records are appended.
	Store store.Options
	// Timeout bounds the HTTP request to a target. Defaults to
	// constants.DefaultCollectTimeout.
	Timeout time.Duration
	// Client overrides the HTTP client.
	Client *http.Client
	// Now overrides the clock used for record timestamps.
	Now func() time.Time
	// Registerer receives the collector metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
	Logger     zerolog.Logger
}

// Collector fetches samples from targets and appends them to the store.
type Collector struct {
	store   store.Options
	timeout time.Duration
	client  *http.Client
	now     func() time.Time
	metrics *metrics
	logger  zerolog.Logger
}

// New creates a collector.
func New(cfg Config) *Collector {
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultCollectTimeout
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Collector{
		store:   cfg.Store,
		timeout: timeout,
		client:  client,
		now:     now,
		metrics: newMetrics(cfg.Registerer),
		logger:  logger.With().Str("component", "collector").Logger(),
	}
}

// Collect fetches and resets the target's samples, then appends one record
// per stack, all stamped with the same collection time.
//
// Transport failures wrap ErrTransport and store failures wrap ErrSave. Both
// are logged; neither is fatal to a caller looping over targets.
func (c *Collector) Collect(ctx context.Context, t Target) error {
	start := time.Now()
	defer func() { c.metrics.duration.Observe(time.Since(start).Seconds()) }()

	logger := c.logger.With().Str("host", t.Host).Int("port", t.Port).Logger()
	logger.Debug().Str("dbpath", c.store.Path).Msg("Collecting")

	stats, err := c.fetch(ctx, t)
	if err != nil {
		c.metrics.collects.WithLabelValues(resultTransport).Inc()
		logger.Warn().Err(err).Msg("Error collecting data")
		return fmt.Errorf("%w: %s: %w", ErrTransport, t, err)
	}

	now := c.now().Unix()
	entries := make([]store.Entry, 0, len(stats.Stacks))
	for _, st := range stats.Stacks {
		entries = append(entries, store.Entry{
			Signature: st.Signature,
			Record: store.Record{
				Host:      t.Host,
				Port:      t.Port,
				Timestamp: now,
				Count:     st.Count,
			},
		})
	}

	if len(entries) > 0 {
		if err := store.AppendBatch(ctx, c.store, entries); err != nil {
			c.metrics.collects.WithLabelValues(resultSave).Inc()
			logger.Warn().Err(err).Msg("Error saving data")
			return fmt.Errorf("%w: %s: %w", ErrSave, t, err)
		}
	}

	c.metrics.collects.WithLabelValues(resultSuccess).Inc()
	c.metrics.records.Add(float64(len(entries)))
	logger.Info().Int("num_stacks", len(entries)).Msg("Data collected")

	return nil
}

func (c *Collector) fetch(ctx context.Context, t Target) (sampler.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL(), nil)
	if err != nil {
		return sampler.Stats{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return sampler.Stats{}, err
	}
	defer cleanup.DeferClose(c.logger, resp.Body, "failed to close response body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return sampler.Stats{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	stats, err := sampler.ParseStats(resp.Body)
	if err != nil {
		return sampler.Stats{}, fmt.Errorf("failed to read response: %w", err)
	}
	return stats, nil
}

// Poller collects from a fixed list of targets, one after the other.
type Poller struct {
	collector *Collector
	targets   []Target
	logger    zerolog.Logger
}

// NewPoller creates a poller over targets.
func NewPoller(c *Collector, targets []Target) *Poller {
	return &Poller{
		collector: c,
		targets:   targets,
		logger:    c.logger,
	}
}

// Targets returns the polled targets.
func (p *Poller) Targets() []Target {
	return p.targets
}

// PollOnce collects from every target in order. Per-target failures are
// already logged by Collect and never abort the cycle; PollOnce only stops
// early when ctx is done.
func (p *Poller) PollOnce(ctx context.Context) error {
	failed := 0
	for _, t := range p.targets {
		if ctx.Err() != nil {
			return nil
		}
		if err := p.collector.Collect(ctx, t); err != nil {
			failed++
		}
	}

	p.logger.Debug().
		Int("targets", len(p.targets)).
		Int("failed", failed).
		Msg("Collection cycle complete")
	return nil
}
