// Package duckdb provides the DuckDB plumbing used by the stack store: opening
// a database file in read-only or read-write mode, and building the SELECT and
// append-on-conflict statements the store issues.
//
//	sql, args, err := duckdb.NewQueryBuilder("stack_records").
//	    Select("signature", "records").
//	    OrderBy("signature").
//	    Build()
//
//	rows, err := db.QueryContext(ctx, sql, args...)
//
// The builders focus on SQL generation only and do not execute queries.
package duckdb
