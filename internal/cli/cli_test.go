package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/pprof/profile"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackcollector/stackcollector/internal/config"
	"github.com/stackcollector/stackcollector/internal/flamegraph"
	"github.com/stackcollector/stackcollector/internal/store"
	"github.com/stackcollector/stackcollector/internal/testutil"
)

func newTestCmd(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Setenv("STACKCOLLECTOR_CONFIG", "")

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	// Global flags go first: a root command without Run would take a
	// trailing flag value after --version for a subcommand name.
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	return cmd, &out
}

func execute(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd, out := newTestCmd(t, args...)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func seedStore(t *testing.T) store.Options {
	t.Helper()

	opts := testutil.NewTestStore(t, store.EngineLog)
	testutil.SeedStore(t, opts,
		testutil.Entry("main;work", 100, 6),
		testutil.Entry("main;idle", 200, 2),
	)
	return opts
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(context.Background(), t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "stackcollector version")
	assert.Contains(t, out, "Go version:")
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(context.Background(), t, "--version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "stackcollector "))
	assert.Contains(t, out, "commit ")
}

func TestQueryCmd_PrintsTree(t *testing.T) {
	opts := seedStore(t)

	out, err := execute(context.Background(), t, "query", "--dbpath", opts.Path, "--engine", "log")
	require.NoError(t, err)

	var tree flamegraph.Tree
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	assert.Equal(t, int64(8), tree.Value)
	require.Len(t, tree.Children, 1)
	assert.Len(t, tree.Children[0].Children, 2)
}

func TestQueryCmd_WindowAndThreshold(t *testing.T) {
	opts := seedStore(t)

	out, err := execute(context.Background(), t, "query",
		"--dbpath", opts.Path, "--engine", "log",
		"--from", "150", "--until", "1970-01-01T00:05:00Z")
	require.NoError(t, err)

	var tree flamegraph.Tree
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	assert.Equal(t, int64(2), tree.Value)

	out, err = execute(context.Background(), t, "query",
		"--dbpath", opts.Path, "--engine", "log", "--threshold", "0.5")
	require.NoError(t, err)

	tree = flamegraph.Tree{}
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	top := tree.Children[0]
	require.Len(t, top.Children, 1)
	assert.Equal(t, "work", top.Children[0].Name)
}

func TestQueryCmd_Pprof(t *testing.T) {
	opts := seedStore(t)
	path := filepath.Join(t.TempDir(), "profile.pb.gz")

	_, err := execute(context.Background(), t, "query",
		"--dbpath", opts.Path, "--engine", "log", "--pprof", path)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	p, err := profile.Parse(f)
	require.NoError(t, err)
	assert.Len(t, p.Sample, 2)
}

func TestQueryCmd_MissingStoreIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent")

	out, err := execute(context.Background(), t, "query", "--dbpath", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"root","value":0}`, out)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestQueryCmd_Errors(t *testing.T) {
	opts := seedStore(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"threshold out of range", []string{"--threshold", "2"}, "threshold"},
		{"bad from", []string{"--from", "yesterday"}, "--from"},
		{"unknown engine", []string{"--engine", "sqlite"}, "invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"query", "--dbpath", opts.Path}, tt.args...)
			_, err := execute(context.Background(), t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigFileAndFlags(t *testing.T) {
	opts := seedStore(t)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  path: "+opts.Path+"\n  engine: log\n"), 0o600))

	out, err := execute(context.Background(), t, "query", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"work"`)

	// Flags win over the file.
	out, err = execute(context.Background(), t, "query", "--config", cfgPath, "--dbpath", filepath.Join(t.TempDir(), "other"))
	require.NoError(t, err)
	assert.NotContains(t, out, `"work"`)
}

func TestConfigCmd_InitViewValidate(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(context.Background(), t, "config", "init", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default configuration")

	loaded, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), loaded)

	_, err = execute(context.Background(), t, "config", "init", cfgPath)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(context.Background(), t, "config", "init", cfgPath, "--force")
	assert.NoError(t, err)

	t.Setenv("STACKCOLLECTOR_PORTS", "9000..9001")
	out, err = execute(context.Background(), t, "config", "view", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ports: 9000..9001")
	assert.Contains(t, out, "level: error")

	out, err = execute(context.Background(), t, "config", "validate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestConfigCmd_ValidateReportsErrors(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  engine: bolt\n"), 0o600))

	// View shows the configuration even when it is invalid.
	out, err := execute(context.Background(), t, "config", "view", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "engine: bolt")

	_, err = execute(context.Background(), t, "config", "validate", "--config", cfgPath)
	assert.ErrorContains(t, err, "store.engine")
}

func hostPort(t *testing.T, rawURL string) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(strings.TrimPrefix(rawURL, "http://"))
	require.NoError(t, err)
	return host, port
}

func TestCollectorCmd_CollectsUntilCanceled(t *testing.T) {
	emitter := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("elapsed 1.0\ngranularity 0.005\nmain;work 3\n"))
	}))
	defer emitter.Close()
	host, port := hostPort(t, emitter.URL)

	dbPath := filepath.Join(t.TempDir(), "db")
	reader := store.NewReader(store.Options{Path: dbPath, Engine: store.EngineLog})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd, _ := newTestCmd(t, "collector",
		"--dbpath", dbPath, "--engine", "log",
		"--host", host, "--ports", port, "--interval", "10ms")

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		tree, err := flamegraph.Query(context.Background(), reader, flamegraph.Request{})
		return err == nil && tree.Value >= 6
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestCollectorCmd_InvalidPorts(t *testing.T) {
	_, err := execute(context.Background(), t, "collector",
		"--dbpath", filepath.Join(t.TempDir(), "db"), "--ports", "10..2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collector.ports")
}
