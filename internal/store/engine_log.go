package store

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// maxLogLine bounds a single signature\ttoken line.
const maxLogLine = 16 * 1024 * 1024

// logEngine keeps one "signature\ttoken" line per record in an append-only
// file. Values are rebuilt on scan by grouping lines per signature in file
// order.
type logEngine struct {
	path   string
	file   *os.File
	logger zerolog.Logger
}

func openLogEngine(path string, mode Mode, logger zerolog.Logger) (Engine, error) {
	e := &logEngine{
		path:   path,
		logger: logger.With().Str("engine", EngineLog).Logger(),
	}

	if mode == ReadWrite {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log: %w", err)
		}

		dropped, err := truncateTornTail(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to repair log: %w", err)
		}
		if dropped > 0 {
			e.logger.Warn().Int64("bytes", dropped).Msg("Dropped incomplete record at end of log")
		}
		e.file = f
	}

	return e, nil
}

// truncateTornTail cuts f back to its last newline when an interrupted write
// left an unterminated line, and returns the number of bytes removed.
func truncateTornTail(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}

	chunk := make([]byte, 64*1024)
	end := size
	for end > 0 {
		start := max(end-int64(len(chunk)), 0)
		buf := chunk[:end-start]
		if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
			return 0, err
		}

		if i := bytes.LastIndexByte(buf, '\n'); i >= 0 {
			end = start + int64(i) + 1
			break
		}
		end = start
	}

	if end == size {
		return 0, nil
	}
	if err := f.Truncate(end); err != nil {
		return 0, err
	}
	return size - end, nil
}

// completeLines splits like bufio.ScanLines but drops an unterminated last
// line, which is the remains of an interrupted write.
func completeLines(torn *bool) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			return i + 1, data[:i], nil
		}
		if atEOF && len(data) > 0 {
			*torn = true
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
}

func (e *logEngine) Append(ctx context.Context, entries []Entry) error {
	if e.file == nil {
		return ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf strings.Builder
	for _, entry := range entries {
		buf.WriteString(entry.Signature)
		buf.WriteByte('\t')
		buf.WriteString(entry.Record.Token())
		buf.WriteByte('\n')
	}

	if _, err := e.file.WriteString(buf.String()); err != nil {
		return fmt.Errorf("failed to write log: %w", err)
	}
	if err := e.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log: %w", err)
	}
	return nil
}

func (e *logEngine) Scan(ctx context.Context, fn ScanFunc) error {
	f, err := os.Open(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	values := make(map[string]*strings.Builder)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	torn := false
	scanner.Split(completeLines(&torn))

	skipped := 0
	for scanner.Scan() {
		line := scanner.Text()
		sig, token, ok := strings.Cut(line, "\t")
		if !ok || token == "" {
			skipped++
			continue
		}

		b, ok := values[sig]
		if !ok {
			b = &strings.Builder{}
			values[sig] = b
		}
		b.WriteString(token)
		b.WriteString(TokenSeparator)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}

	if skipped > 0 {
		e.logger.Debug().Int("lines", skipped).Msg("Skipped malformed log lines")
	}
	if torn {
		e.logger.Debug().Msg("Skipped incomplete record at end of log")
	}

	signatures := make([]string, 0, len(values))
	for sig := range values {
		signatures = append(signatures, sig)
	}
	sort.Strings(signatures)

	for _, sig := range signatures {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(sig, values[sig].String()); err != nil {
			return err
		}
	}
	return nil
}

func (e *logEngine) Close() error {
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	return err
}
