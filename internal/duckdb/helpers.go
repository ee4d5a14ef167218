package duckdb

import (
	"fmt"
	"strings"
	"time"
)

// maxLoggedString bounds interpolated string arguments. Record values grow
// without limit and are not useful in full in a log line.
const maxLoggedString = 64

// InterpolateQuery returns a formatted query for logging.
// Placeholders are substituted left to right; placeholders inside substituted
// values are never expanded again.
func InterpolateQuery(query string, args []interface{}) string {
	var out strings.Builder
	next := 0
	for _, r := range query {
		switch {
		case r == '?' && next < len(args):
			out.WriteString(literal(args[next]))
			next++
		case r == '\n':
		case r == '\t':
			out.WriteByte(' ')
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

func literal(arg interface{}) string {
	switch v := arg.(type) {
	case string:
		if len(v) > maxLoggedString {
			v = v[:maxLoggedString] + "..."
		}
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%v", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case time.Time:
		return "'" + v.Format(time.RFC3339Nano) + "'"
	case nil:
		return "NULL"
	default:
		return fmt.Sprintf("'%v'", v)
	}
}
