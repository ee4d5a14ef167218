package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Emitter is a minimal HTTP server that serves a sampler's statistics.
// A request with reset=1 or reset=true clears the counters after the
// response body has been captured.
type Emitter struct {
	sampler  *Sampler
	host     string
	port     int
	logger   zerolog.Logger
	listener net.Listener
	server   *http.Server
	addr     string
}

// NewEmitter creates an emitter for the sampler bound to host:port.
// Port 0 selects a free port.
func NewEmitter(sampler *Sampler, host string, port int, logger zerolog.Logger) *Emitter {
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &Emitter{
		sampler: sampler,
		host:    host,
		port:    port,
		logger:  logger.With().Str("component", "stack-emitter").Logger(),
	}
}

// Start binds the listener and serves requests on a background goroutine.
func (e *Emitter) Start() error {
	listener, err := net.Listen("tcp", net.JoinHostPort(e.host, strconv.Itoa(e.port)))
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	e.listener = listener
	e.addr = listener.Addr().String()

	e.server = &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		// Keep the embedding program's stderr clean.
		ErrorLog: log.New(io.Discard, "", 0),
	}

	go func() {
		e.logger.Info().Str("addr", e.addr).Dur("interval", e.sampler.Interval()).Msg("Serving profiles")
		if err := e.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error().Err(err).Msg("Emitter server error")
		}
	}()

	return nil
}

// Addr returns the emitter's listen address.
func (e *Emitter) Addr() string {
	return e.addr
}

// Close stops the server immediately.
func (e *Emitter) Close() error {
	if e.server == nil {
		return nil
	}
	return e.server.Close()
}

// Shutdown stops the server gracefully.
func (e *Emitter) Shutdown(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	return e.server.Shutdown(ctx)
}

// ServeHTTP renders the sampler's statistics as text.
func (e *Emitter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A HEAD response carries no body, so it must not drain the counters.
	body := e.render(r.Method == http.MethodGet && wantsReset(r))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = io.WriteString(w, body)
	}
}

// render captures the stats, resetting the counters afterwards if asked to.
func (e *Emitter) render(reset bool) string {
	if !e.sampler.Started() {
		return ""
	}
	return e.sampler.Snapshot(reset).String()
}

func wantsReset(r *http.Request) bool {
	switch r.URL.Query().Get("reset") {
	case "1", "true":
		return true
	default:
		return false
	}
}
