package sampler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPopulatedSampler(t *testing.T) (*Sampler, string) {
	t.Helper()

	s := New(Config{Interval: 5 * time.Millisecond})
	s.Reset()

	key := captureHere()
	s.counts[key] = 4

	return s, signature(key[:])
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestEmitter_ServesStats(t *testing.T) {
	s, sig := newPopulatedSampler(t)
	e := NewEmitter(s, "127.0.0.1", 0, zerolog.Nop())

	rec := get(t, e, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	stats, err := ParseStats(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, stats.Granularity)
	assert.Equal(t, []StackCount{{Signature: sig, Count: 4}}, stats.Stacks)

	// Without reset the counters are kept.
	rec = get(t, e, "/?reset=false")
	assert.Contains(t, rec.Body.String(), sig+" 4")
}

func TestEmitter_ResetAfterSnapshot(t *testing.T) {
	for _, value := range []string{"1", "true"} {
		t.Run(value, func(t *testing.T) {
			s, sig := newPopulatedSampler(t)
			e := NewEmitter(s, "127.0.0.1", 0, zerolog.Nop())

			rec := get(t, e, "/?reset="+value)
			assert.Contains(t, rec.Body.String(), sig+" 4", "response must carry the data being cleared")

			rec = get(t, e, "/")
			stats, err := ParseStats(rec.Body)
			require.NoError(t, err)
			assert.Empty(t, stats.Stacks)
		})
	}
}

func TestEmitter_HeadDoesNotReset(t *testing.T) {
	s, sig := newPopulatedSampler(t)
	e := NewEmitter(s, "127.0.0.1", 0, zerolog.Nop())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/?reset=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.Contains(t, get(t, e, "/").Body.String(), sig+" 4")
}

func TestEmitter_NotStarted(t *testing.T) {
	e := NewEmitter(New(Config{}), "127.0.0.1", 0, zerolog.Nop())

	rec := get(t, e, "/?reset=true")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestEmitter_RejectsPost(t *testing.T) {
	s, _ := newPopulatedSampler(t)
	e := NewEmitter(s, "127.0.0.1", 0, zerolog.Nop())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRun_ServesOverHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := Run(ctx, RunConfig{Host: "127.0.0.1", Port: -1, Interval: time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	require.True(t, p.Sampler().Running())

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + p.Addr() + "/?reset=true")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(string(body), "elapsed "))
	assert.Contains(t, string(body), "\ngranularity 0.001\n")

	cancel()
	require.Eventually(t, func() bool {
		return !p.Sampler().Running()
	}, 5*time.Second, 10*time.Millisecond)

	// Close after context cancellation is a no-op.
	assert.NoError(t, p.Close())
}
