// Package store persists collected stack samples.
//
// A store maps a stack signature to an append-only value: the concatenation of
// one "host:port:timestamp:count " token per collection of that stack. Values
// are never rewritten, so the store grows without bound.
//
// Two engines implement the map: a DuckDB table (the default) and a plain
// append-only log file. Both sit behind an advisory file lock: one writer at a
// time, or any number of readers. Open waits for a held lock without giving
// up, so concurrent collectors serialize instead of failing.
package store
