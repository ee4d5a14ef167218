package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	cleanup "github.com/stackcollector/stackcollector/internal/errors"
	"github.com/stackcollector/stackcollector/internal/retry"
)

// Engine names accepted in Options.Engine.
const (
	EngineDuckDB = "duckdb"
	EngineLog    = "log"
)

// Mode selects the kind of lock taken by Open.
type Mode int

const (
	// ReadOnly takes a shared lock. Any number of readers may hold the store
	// at once, and none while a writer holds it.
	ReadOnly Mode = iota
	// ReadWrite takes the exclusive single-writer lock.
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

var (
	// ErrReadOnly is returned when appending through a read-only handle.
	ErrReadOnly = errors.New("store is open read-only")
	// ErrClosed is returned when using a closed handle.
	ErrClosed = errors.New("store is closed")
	// ErrUnknownEngine is returned for an unsupported Options.Engine.
	ErrUnknownEngine = errors.New("unknown store engine")
)

// DefaultLockRetry is the backoff used while another handle holds the lock.
// It never gives up; only context cancellation ends the wait.
var DefaultLockRetry = retry.Config{
	InitialBackoff: time.Millisecond,
	MaxBackoff:     10 * time.Millisecond,
	Jitter:         0.2,
}

// Options locate and configure a store.
type Options struct {
	// Path of the store file. The lock lives next to it at Path + ".lock".
	Path string
	// Engine is EngineDuckDB (default) or EngineLog.
	Engine string
	// LockRetry overrides DefaultLockRetry when InitialBackoff is set.
	LockRetry retry.Config
	Logger    zerolog.Logger
}

// Entry is one record to append under a signature.
type Entry struct {
	Signature string
	Record    Record
}

// ScanFunc receives each key and its full value. Returning an error stops the
// scan and the error is returned from Scan.
type ScanFunc func(signature, value string) error

// Engine is a persistent signature to value map supporting append-only
// updates.
type Engine interface {
	// Append appends each entry's token followed by a space to its
	// signature's value, creating the key if needed.
	Append(ctx context.Context, entries []Entry) error
	// Scan visits every key in ascending signature order.
	Scan(ctx context.Context, fn ScanFunc) error
	Close() error
}

// Store is an open handle on a store. It holds the store lock until Close.
type Store struct {
	path   string
	mode   Mode
	lock   *fileLock
	engine Engine
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// Open acquires the store lock in the given mode and opens the engine.
//
// Lock contention is retried until the lock is acquired or ctx is done. Any
// other failure is returned immediately. A read-only open of a store that does
// not exist yet yields an empty store.
func Open(ctx context.Context, opts Options, mode Mode) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	logger := opts.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "store").Str("path", opts.Path).Logger()

	engineName := opts.Engine
	if engineName == "" {
		engineName = EngineDuckDB
	}
	open, err := engineOpener(engineName)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:   opts.Path,
		mode:   mode,
		logger: logger,
	}

	if mode == ReadOnly && !exists(opts.Path) {
		logger.Debug().Msg("Store does not exist yet, serving empty store")
		s.engine = emptyEngine{}
		return s, nil
	}

	s.lock = newFileLock(opts.Path)
	if err := s.acquire(ctx, opts.LockRetry); err != nil {
		_ = s.lock.unlock()
		return nil, err
	}

	engine, err := open(opts.Path, mode, logger)
	if err != nil {
		_ = s.lock.unlock()
		return nil, fmt.Errorf("failed to open %s engine: %w", engineName, err)
	}
	s.engine = engine

	return s, nil
}

func (s *Store) acquire(ctx context.Context, cfg retry.Config) error {
	if cfg.InitialBackoff <= 0 {
		cfg = DefaultLockRetry
	}

	cfg.OnRetry = func(attempt int, _ error) {
		if attempt == 1 {
			s.logger.Debug().Stringer("mode", s.mode).Msg("Store locked, waiting")
		}
	}

	err := retry.Do(ctx, cfg, func() error {
		return s.lock.tryLock(s.mode == ReadWrite)
	}, func(err error) bool {
		return errors.Is(err, ErrLocked)
	})
	if err != nil {
		return fmt.Errorf("failed to acquire store lock: %w", err)
	}
	return nil
}

// Mode returns the mode the store was opened in.
func (s *Store) Mode() Mode {
	return s.mode
}

// Append appends one record to signature's value.
func (s *Store) Append(ctx context.Context, signature string, rec Record) error {
	return s.AppendBatch(ctx, []Entry{{Signature: signature, Record: rec}})
}

// AppendBatch appends every entry in order. Existing tokens are never
// rewritten.
func (s *Store) AppendBatch(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.mode != ReadWrite {
		return ErrReadOnly
	}
	if len(entries) == 0 {
		return nil
	}

	for _, e := range entries {
		if strings.ContainsAny(e.Signature, "\t\n") {
			return fmt.Errorf("invalid signature %q: contains tab or newline", e.Signature)
		}
	}

	if err := s.engine.Append(ctx, entries); err != nil {
		return fmt.Errorf("failed to append records: %w", err)
	}
	return nil
}

// Scan visits every key in ascending signature order.
func (s *Store) Scan(ctx context.Context, fn ScanFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.engine.Scan(ctx, fn)
}

// Close closes the engine and releases the lock. Calling Close more than
// once is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close engine: %w", err))
		}
	}
	if s.lock != nil {
		if err := s.lock.unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Append opens the store read-write, appends one record and closes it.
func Append(ctx context.Context, opts Options, signature string, rec Record) error {
	return AppendBatch(ctx, opts, []Entry{{Signature: signature, Record: rec}})
}

// AppendBatch opens the store read-write, appends entries and closes it.
func AppendBatch(ctx context.Context, opts Options, entries []Entry) (err error) {
	s, err := Open(ctx, opts, ReadWrite)
	if err != nil {
		return err
	}
	defer cleanup.CloseInto(&err, s)

	return s.AppendBatch(ctx, entries)
}

// Reader scans a store, opening it read-only for the duration of each scan.
type Reader struct {
	opts Options
}

// NewReader creates a reader for the store described by opts.
func NewReader(opts Options) *Reader {
	return &Reader{opts: opts}
}

// Scan opens the store read-only, visits every key and closes it.
func (r *Reader) Scan(ctx context.Context, fn ScanFunc) (err error) {
	s, err := Open(ctx, r.opts, ReadOnly)
	if err != nil {
		return err
	}
	defer cleanup.CloseInto(&err, s)

	return s.Scan(ctx, fn)
}

type engineOpenFunc func(path string, mode Mode, logger zerolog.Logger) (Engine, error)

func engineOpener(name string) (engineOpenFunc, error) {
	switch name {
	case "", EngineDuckDB:
		return openDuckDBEngine, nil
	case EngineLog:
		return openLogEngine, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// Engines lists the supported engine names.
var Engines = []string{EngineDuckDB, EngineLog}

// ValidEngine reports whether name selects a supported engine.
func ValidEngine(name string) bool {
	_, err := engineOpener(name)
	return err == nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type emptyEngine struct{}

func (emptyEngine) Append(context.Context, []Entry) error { return ErrReadOnly }
func (emptyEngine) Scan(context.Context, ScanFunc) error  { return nil }
func (emptyEngine) Close() error                          { return nil }
