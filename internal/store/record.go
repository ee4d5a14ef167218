package store

import (
	"strconv"
	"strings"
)

// TokenSeparator terminates every token in a stored value.
const TokenSeparator = " "

// Record is one collection of one stack from one source. Records are
// immutable once appended.
type Record struct {
	Host      string
	Port      int
	Timestamp int64
	Count     int64
}

// Token encodes the record as host:port:timestamp:count.
func (r Record) Token() string {
	var b strings.Builder
	b.Grow(len(r.Host) + 32)
	b.WriteString(r.Host)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(r.Port))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(r.Timestamp, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(r.Count, 10))
	return b.String()
}

// ParseToken decodes a token produced by Record.Token.
//
// Fields are taken from the right so a host containing colons (an IPv6
// literal) survives. Tokens with fewer than four fields or with non-integer
// port, timestamp or count are rejected.
func ParseToken(token string) (Record, bool) {
	var fields [3]string
	rest := token
	for i := 2; i >= 0; i-- {
		idx := strings.LastIndexByte(rest, ':')
		if idx < 0 {
			return Record{}, false
		}
		fields[i] = rest[idx+1:]
		rest = rest[:idx]
	}

	port, err := strconv.Atoi(fields[0])
	if err != nil {
		return Record{}, false
	}
	ts, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Record{}, false
	}
	count, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Record{}, false
	}

	return Record{Host: rest, Port: port, Timestamp: ts, Count: count}, true
}

// ParseValue decodes every well-formed token of a stored value, in append
// order. Malformed tokens are skipped.
func ParseValue(value string) []Record {
	tokens := strings.Fields(value)
	records := make([]Record, 0, len(tokens))
	for _, tok := range tokens {
		if rec, ok := ParseToken(tok); ok {
			records = append(records, rec)
		}
	}
	return records
}

// Window is an inclusive range of unix-second collection timestamps.
// A nil bound is unbounded.
type Window struct {
	From  *int64
	Until *int64
}

// Bound returns a window bound at ts.
func Bound(ts int64) *int64 {
	return &ts
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts int64) bool {
	if w.From != nil && ts < *w.From {
		return false
	}
	if w.Until != nil && ts > *w.Until {
		return false
	}
	return true
}

// Sum adds the counts of the records of value that fall inside the window.
func (w Window) Sum(value string) int64 {
	var total int64
	for _, rec := range ParseValue(value) {
		if w.Contains(rec.Timestamp) {
			total += rec.Count
		}
	}
	return total
}
