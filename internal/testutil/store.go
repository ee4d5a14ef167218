package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stackcollector/stackcollector/internal/store"
)

// NewTestStore returns options for a store of the given engine in a fresh
// temporary directory. The store itself is created by the first append.
func NewTestStore(t *testing.T, engine string) store.Options {
	t.Helper()
	return store.Options{
		Path:   filepath.Join(t.TempDir(), "stacks.db"),
		Engine: engine,
		Logger: NewTestLogger(t),
	}
}

// SeedStore appends entries to the store at opts in one batch.
func SeedStore(t *testing.T, opts store.Options, entries ...store.Entry) {
	t.Helper()
	if err := store.AppendBatch(NewTestContext(t), opts, entries); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
}

// Entry builds one store entry for host "h", port 1.
func Entry(signature string, timestamp, count int64) store.Entry {
	return store.Entry{
		Signature: signature,
		Record:    store.Record{Host: "h", Port: 1, Timestamp: timestamp, Count: count},
	}
}
