// Package visualizer serves flame graphs of the stack store over HTTP.
package visualizer

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/stackcollector/stackcollector/internal/constants"
	"github.com/stackcollector/stackcollector/internal/flamegraph"
	"github.com/stackcollector/stackcollector/internal/store"
)

//go:embed static/index.html
var indexHTML []byte

// Config configures a Server.
type Config struct {
	Host string
	Port int
	// Source is scanned on every query.
	Source flamegraph.Scanner
	// QueryTimeout bounds one /data or /profile request.
	QueryTimeout time.Duration
	// MaxConns caps concurrent connections, since every query opens the
	// store. Zero means constants.DefaultMaxVisualizerConns.
	MaxConns int
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// Server serves the flame graph page and its data.
type Server struct {
	cfg      Config
	logger   zerolog.Logger
	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// New creates a server. It does not listen until Listen is called.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = constants.DefaultQueryTimeout
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = constants.DefaultMaxVisualizerConns
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.With().Str("component", "visualizer").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/data", s.handleData)
	mux.HandleFunc("/profile", s.handleProfile)
	mux.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealth)
	s.handler = s.loggingMiddleware(mux)

	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = netutil.LimitListener(listener, s.cfg.MaxConns)
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
	}
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve blocks serving requests until Shutdown. It returns nil after a
// shutdown.
func (s *Server) Serve() error {
	if s.server == nil {
		return errors.New("server is not listening")
	}

	s.logger.Info().Str("addr", s.Addr()).Msg("Visualizer listening")
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("visualizer server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("Stopping visualizer")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Dur("duration", time.Since(start)).
			Msg("Request")
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info().
		Interface("from", req.Window.From).
		Interface("until", req.Window.Until).
		Float64("threshold", req.Threshold).
		Msg("Serving /data")

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	tree, err := flamegraph.Query(ctx, s.cfg.Source, req)
	if err != nil {
		s.logger.Error().Err(err).Msg("Query failed")
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tree); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode tree")
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	p, err := flamegraph.Profile(ctx, s.cfg.Source, req.Window)
	if err != nil {
		s.logger.Error().Err(err).Msg("Profile export failed")
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.google.protobuf+gzip")
	w.Header().Set("Content-Disposition", "attachment;filename=stackcollector.pb.gz")
	if err := p.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write profile")
	}
}

// ParseRequest reads from, until and threshold from the query string.
// Times are unix seconds or RFC3339; threshold defaults to 0.
func ParseRequest(r *http.Request) (flamegraph.Request, error) {
	q := r.URL.Query()

	from, err := ParseTime(q.Get("from"))
	if err != nil {
		return flamegraph.Request{}, fmt.Errorf("invalid from: %w", err)
	}
	until, err := ParseTime(q.Get("until"))
	if err != nil {
		return flamegraph.Request{}, fmt.Errorf("invalid until: %w", err)
	}

	req := flamegraph.Request{Window: store.Window{From: from, Until: until}}
	if v := q.Get("threshold"); v != "" {
		req.Threshold, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return flamegraph.Request{}, fmt.Errorf("invalid threshold %q", v)
		}
	}
	if err := req.Validate(); err != nil {
		return flamegraph.Request{}, err
	}

	return req, nil
}

// ParseTime parses unix seconds or an RFC3339 timestamp into a window
// bound. Empty input is unbounded (nil).
func ParseTime(v string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return store.Bound(secs), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%q is neither unix seconds nor RFC3339", v)
	}
	return store.Bound(t.Unix()), nil
}
