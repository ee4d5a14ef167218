package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stackcollector/stackcollector/internal/duckdb"
	"github.com/stackcollector/stackcollector/internal/errors"
)

const (
	recordsTable = "stack_records"

	// appendChunk bounds the rows of a single INSERT statement.
	appendChunk = 500
)

const recordsSchema = `
	CREATE TABLE IF NOT EXISTS stack_records (
		signature VARCHAR PRIMARY KEY,
		records   VARCHAR NOT NULL
	)
`

type duckdbEngine struct {
	db       *sql.DB
	logger   zerolog.Logger
	hasTable bool
}

func openDuckDBEngine(path string, mode Mode, logger zerolog.Logger) (Engine, error) {
	access := duckdb.ReadOnly
	if mode == ReadWrite {
		access = duckdb.ReadWrite
	}

	db, err := duckdb.OpenDB(path, access)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	e := &duckdbEngine{
		db:     db,
		logger: logger.With().Str("engine", EngineDuckDB).Logger(),
	}

	if mode == ReadWrite {
		if _, err := db.Exec(recordsSchema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
		e.hasTable = true
		return e, nil
	}

	// A file created by another tool, or by a writer that failed before
	// creating the schema, reads as empty.
	query, args := duckdb.NewQueryBuilder("information_schema.tables").
		Select("count(*)").
		Eq("table_name", recordsTable).
		MustBuild()

	var tables int
	err = db.QueryRow(query, args...).Scan(&tables)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to inspect schema: %w", err)
	}
	e.hasTable = tables > 0

	return e, nil
}

// Append coalesces entries per signature so a single statement never
// updates the same row twice, then upserts in chunks inside one transaction.
func (e *duckdbEngine) Append(ctx context.Context, entries []Entry) error {
	order, values := coalesce(entries)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer errors.DeferRollback(e.logger, tx)

	for start := 0; start < len(order); start += appendChunk {
		end := min(start+appendChunk, len(order))

		upsert := duckdb.NewUpsertBuilder(recordsTable, "signature", "records").
			OnConflict("signature").
			Set("records = stack_records.records || EXCLUDED.records")
		for _, sig := range order[start:end] {
			upsert.Values(sig, values[sig])
		}

		query, args, err := upsert.Build()
		if err != nil {
			return fmt.Errorf("failed to build append: %w", err)
		}

		if e.logger.GetLevel() <= zerolog.TraceLevel {
			e.logger.Trace().
				Int("rows", upsert.Len()).
				Str("query", duckdb.InterpolateQuery(query, args)).
				Msg("Appending records")
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to append records: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (e *duckdbEngine) Scan(ctx context.Context, fn ScanFunc) error {
	if !e.hasTable {
		return nil
	}

	query, args := duckdb.NewQueryBuilder(recordsTable).
		Select("signature", "records").
		OrderBy("signature").
		MustBuild()

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}
	defer errors.DeferClose(e.logger, rows, "failed to close rows")

	for rows.Next() {
		var signature, records string
		if err := rows.Scan(&signature, &records); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if err := fn(signature, records); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating records: %w", err)
	}
	return nil
}

func (e *duckdbEngine) Close() error {
	return e.db.Close()
}

// coalesce groups entries by signature, keeping first-seen signature order and
// append order within each signature.
func coalesce(entries []Entry) ([]string, map[string]string) {
	order := make([]string, 0, len(entries))
	values := make(map[string]string, len(entries))
	for _, e := range entries {
		v, ok := values[e.Signature]
		if !ok {
			order = append(order, e.Signature)
		}
		values[e.Signature] = v + e.Record.Token() + TokenSeparator
	}
	return order, values
}
