package flamegraph

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackcollector/stackcollector/internal/store"
)

func TestProfile(t *testing.T) {
	src := mapScanner{
		"main(main);work(main);(*conn).serve(net/http)": "h:1:100:5 h:1:200:1 ",
		"main(main);work(main)":                         "h:1:100:3 ",
		"main(main);idle(main)":                         "h:1:300:2 ",
	}

	p, err := Profile(context.Background(), src, store.Window{From: store.Bound(100), Until: store.Bound(200)})
	require.NoError(t, err)

	require.Len(t, p.Sample, 2, "stacks with a zero sum are dropped")

	// Samples follow signature order.
	assert.Equal(t, int64(100*1e9), p.TimeNanos)
	assert.Equal(t, int64(100*1e9), p.DurationNanos)

	shallow, deep := p.Sample[0], p.Sample[1]
	assert.Equal(t, []int64{3}, shallow.Value)
	assert.Equal(t, []int64{6}, deep.Value)
	require.Len(t, deep.Location, 3)
	assert.Equal(t, "net/http.(*conn).serve", deep.Location[0].Line[0].Function.Name, "locations are leaf first")
	assert.Equal(t, "net/http", deep.Location[0].Line[0].Function.Filename)
	assert.Equal(t, "main.main", deep.Location[2].Line[0].Function.Name)

	// Shared frames share locations and functions.
	assert.Len(t, p.Location, 3)
	assert.Len(t, p.Function, 3)
	assert.Same(t, deep.Location[1], shallow.Location[0])

	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf))
	parsed, err := profile.Parse(&buf)
	require.NoError(t, err)
	assert.Len(t, parsed.Sample, 2)
}

func TestProfile_ScanFailure(t *testing.T) {
	_, err := Profile(context.Background(), failingScanner{err: assert.AnError}, store.Window{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSplitFrame(t *testing.T) {
	tests := []struct {
		frame, name, pkg string
	}{
		{"main(main)", "main", "main"},
		{"(*conn).serve(net/http)", "(*conn).serve", "net/http"},
		{"?(?)", "?", "?"},
		{"plain", "plain", ""},
		{"(x)", "(x)", ""},
	}

	for _, tt := range tests {
		name, pkg := splitFrame(tt.frame)
		assert.Equal(t, tt.name, name, tt.frame)
		assert.Equal(t, tt.pkg, pkg, tt.frame)
	}
}
