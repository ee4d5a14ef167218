package sampler

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Header line prefixes of the text protocol.
const (
	headerElapsed     = "elapsed"
	headerGranularity = "granularity"
	headerLines       = 2
)

// maxLineSize bounds a single protocol line (a very deep signature).
const maxLineSize = 16 * 1024 * 1024

// StackCount is the number of samples observed for one stack signature.
type StackCount struct {
	Signature string
	Count     int64
}

// Stats is a point-in-time rendering of a sampler's counters.
//
// Text form:
//
//	elapsed <float-seconds>
//	granularity <float-seconds>
//	<signature> <count>
//	...
type Stats struct {
	Elapsed     time.Duration
	Granularity time.Duration
	Stacks      []StackCount
}

// Total returns the sum of all stack counts.
func (s Stats) Total() int64 {
	var total int64
	for _, st := range s.Stacks {
		total += st.Count
	}
	return total
}

// String renders the stats in the text protocol format.
func (s Stats) String() string {
	var sb strings.Builder
	_, _ = s.WriteTo(&sb)
	return sb.String()
}

// WriteTo writes the stats in the text protocol format.
func (s Stats) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64

	n, err := fmt.Fprintf(bw, "%s %s\n%s %s\n",
		headerElapsed, formatSeconds(s.Elapsed),
		headerGranularity, formatSeconds(s.Granularity))
	written += int64(n)
	if err != nil {
		return written, err
	}

	for _, st := range s.Stacks {
		n, err := fmt.Fprintf(bw, "%s %d\n", st.Signature, st.Count)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	return written, bw.Flush()
}

// ParseStats parses a text protocol body. The first two lines are headers and
// are never treated as stacks; when they are well formed their values fill
// Elapsed and Granularity. Every other line must be exactly
// "<signature> <count>" with a non-negative integer count; lines that do not
// parse are skipped. Only read errors are returned.
func ParseStats(r io.Reader) (Stats, error) {
	var stats Stats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		text := scanner.Text()
		line++

		if line <= headerLines {
			parseHeader(&stats, text)
			continue
		}

		st, ok := ParseStackLine(text)
		if !ok {
			continue
		}
		stats.Stacks = append(stats.Stacks, st)
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read stats: %w", err)
	}

	return stats, nil
}

// ParseStackLine parses a "<signature> <count>" line.
func ParseStackLine(line string) (StackCount, bool) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return StackCount{}, false
	}

	count, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || count < 0 {
		return StackCount{}, false
	}

	return StackCount{Signature: fields[0], Count: count}, true
}

func parseHeader(stats *Stats, line string) {
	name, value, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return
	}

	d := time.Duration(secs * float64(time.Second))
	switch name {
	case headerElapsed:
		stats.Elapsed = d
	case headerGranularity:
		stats.Granularity = d
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
