package sampler

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFrame(t *testing.T) {
	tests := []struct {
		function string
		want     string
	}{
		{"main.main", "main(main)"},
		{"net/http.(*conn).serve", "(*conn).serve(net/http)"},
		{"github.com/acme/app/internal/db.Query.func1", "Query.func1(github.com/acme/app/internal/db)"},
		{"github.com/acme/app.(*T[...]).Run", "(*T[...]).Run(github.com/acme/app)"},
		{"noPackage", "noPackage()"},
		{"", "?(?)"},
		{"pkg.weird name;x", "weird_name_x(pkg)"},
	}

	for _, tt := range tests {
		t.Run(tt.function, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFrame(tt.function))
		})
	}
}

//go:noinline
func captureHere() stackKey {
	var key stackKey
	runtime.Callers(1, key[:])
	return key
}

func TestSignature_OutermostFirst(t *testing.T) {
	key := captureHere()

	sig := signature(key[:])
	frames := strings.Split(sig, FrameSeparator)
	require.GreaterOrEqual(t, len(frames), 2)

	assert.Equal(t, "captureHere(github.com/stackcollector/stackcollector/pkg/sampler)", frames[len(frames)-1])
	assert.Equal(t, "TestSignature_OutermostFirst(github.com/stackcollector/stackcollector/pkg/sampler)", frames[len(frames)-2])
	assert.NotContains(t, sig, "goexit")
	assert.NotEqual(t, TruncatedFrame, frames[0])
}

// captureTwice captures the same stack from two call sites, so the keys differ
// only in the innermost return address.
//
//go:noinline
func captureTwice() (first, second stackKey) {
	runtime.Callers(1, first[:])
	runtime.Callers(1, second[:])
	return first, second
}

func TestStackCounts_RenderMergesAndSorts(t *testing.T) {
	a, b := captureTwice()
	require.NotEqual(t, a, b)
	require.Equal(t, signature(a[:]), signature(b[:]))

	other := captureHere()

	counts := stackCounts{a: 2, b: 3, other: 1}
	stacks := counts.render()

	require.Len(t, stacks, 2)
	assert.Equal(t, StackCount{Signature: signature(a[:]), Count: 5}, stacks[0])
	assert.Equal(t, StackCount{Signature: signature(other[:]), Count: 1}, stacks[1])
}

//go:noinline
func descend(depth int) stackKey {
	if depth == 0 {
		return captureHere()
	}
	return descend(depth - 1)
}

//go:noinline
func deepRoot() stackKey {
	return descend(50)
}

func TestSignature_DeepStackIsMarkedTruncated(t *testing.T) {
	key := deepRoot()

	frames := strings.Split(signature(key[:]), FrameSeparator)
	require.Greater(t, len(frames), len(key))

	assert.Equal(t, TruncatedFrame, frames[0])
	assert.Equal(t, "descend(github.com/stackcollector/stackcollector/pkg/sampler)", frames[1])
	assert.Equal(t, "captureHere(github.com/stackcollector/stackcollector/pkg/sampler)", frames[len(frames)-1])
	assert.NotContains(t, frames, "deepRoot(github.com/stackcollector/stackcollector/pkg/sampler)")
}

func TestSortStacks(t *testing.T) {
	stacks := []StackCount{
		{Signature: "b", Count: 1},
		{Signature: "a", Count: 1},
		{Signature: "c", Count: 9},
	}

	SortStacks(stacks)

	assert.Equal(t, []StackCount{
		{Signature: "c", Count: 9},
		{Signature: "a", Count: 1},
		{Signature: "b", Count: 1},
	}, stacks)
}
