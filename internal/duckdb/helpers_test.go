package duckdb

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterpolateQuery(t *testing.T) {
	fixedTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		query    string
		args     []interface{}
		expected string
	}{
		{
			name:     "string with single quote",
			query:    "SELECT * FROM t WHERE name = ?",
			args:     []interface{}{"O'Brien"},
			expected: "SELECT * FROM t WHERE name = 'O''Brien'",
		},
		{
			name:     "mixed",
			query:    "INSERT INTO t VALUES (?, ?, ?, ?, ?, ?)",
			args:     []interface{}{"a", 30, uint8(2), 1.5, fixedTime, true},
			expected: "INSERT INTO t VALUES ('a', 30, 2, 1.5, '2025-01-01T00:00:00Z', true)",
		},
		{
			name:     "null and bool false",
			query:    "SELECT ?, ?",
			args:     []interface{}{nil, false},
			expected: "SELECT NULL, false",
		},
		{
			name:     "placeholder inside value is kept",
			query:    "SELECT ? , ?",
			args:     []interface{}{"what?", 1},
			expected: "SELECT 'what?' , 1",
		},
		{
			name:     "more placeholders than args",
			query:    "SELECT ?, ?",
			args:     []interface{}{1},
			expected: "SELECT 1, ?",
		},
		{
			name:     "whitespace",
			query:    "SELECT *\nFROM t\tWHERE id = ?",
			args:     []interface{}{42},
			expected: "SELECT *FROM t WHERE id = 42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InterpolateQuery(tt.query, tt.args))
		})
	}
}

func TestInterpolateQuery_TruncatesLongStrings(t *testing.T) {
	records := strings.Repeat("h:1:100:5 ", 100)

	got := InterpolateQuery("SELECT ?", []interface{}{records})

	assert.Equal(t, "SELECT '"+records[:maxLoggedString]+"...'", got)
}
