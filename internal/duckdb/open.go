package duckdb

import (
	"database/sql"
	"net/url"
	"strings"

	duckdbDriver "github.com/marcboeker/go-duckdb"
)

// AccessMode selects how a database file is opened.
type AccessMode int

const (
	// ReadWrite opens the database for writing, creating it if missing.
	ReadWrite AccessMode = iota
	// ReadOnly opens an existing database without taking the write lock.
	ReadOnly
)

// String returns the DuckDB access_mode value for the mode.
func (m AccessMode) String() string {
	if m == ReadOnly {
		return "READ_ONLY"
	}
	return "READ_WRITE"
}

// OpenDB opens the DuckDB database at path in the given mode.
//
// An empty path or ":memory:" opens an in-memory database, which is always
// read-write.
func OpenDB(path string, mode AccessMode) (*sql.DB, error) {
	connector, err := duckdbDriver.NewConnector(buildDSN(path, mode), nil)
	if err != nil {
		return nil, err
	}

	return sql.OpenDB(connector), nil
}

// buildDSN adds access_mode to the DSN query parameters if not already set.
func buildDSN(dsn string, mode AccessMode) string {
	if dsn == "" || dsn == ":memory:" {
		return dsn
	}

	sep := strings.IndexByte(dsn, '?')
	path := dsn
	query := ""
	if sep >= 0 {
		path = dsn[:sep]
		query = dsn[sep+1:]
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return dsn
	}

	if !params.Has("access_mode") {
		params.Set("access_mode", mode.String())
	}

	return path + "?" + params.Encode()
}
