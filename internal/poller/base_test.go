package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPoller struct {
	mu        sync.Mutex
	pollCount int
	pollErr   error
	delay     time.Duration
	starts    []time.Time
	ends      []time.Time
}

func (m *mockPoller) PollOnce(ctx context.Context) error {
	m.mu.Lock()
	m.pollCount++
	m.starts = append(m.starts, time.Now())
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
		}
	}

	m.mu.Lock()
	m.ends = append(m.ends, time.Now())
	m.mu.Unlock()
	return m.pollErr
}

func (m *mockPoller) getPollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollCount
}

func newTestPoller(ctx context.Context, interval time.Duration) *BasePoller {
	return NewBasePoller(ctx, Config{
		Name:         "test_poller",
		PollInterval: interval,
		Logger:       zerolog.Nop(),
	})
}

func TestBasePoller_StartStop(t *testing.T) {
	mock := &mockPoller{}
	base := newTestPoller(context.Background(), 10*time.Millisecond)

	assert.False(t, base.isRunning())

	require.NoError(t, base.Start(mock))
	assert.True(t, base.isRunning())

	// Starting twice is a no-op.
	require.NoError(t, base.Start(mock))

	require.Eventually(t, func() bool { return mock.getPollCount() >= 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, base.Stop())
	assert.False(t, base.isRunning())

	stopped := mock.getPollCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, mock.getPollCount(), "no polls after Stop")

	// Stopping twice is a no-op.
	require.NoError(t, base.Stop())

	select {
	case <-base.Done():
	default:
		t.Fatal("Done must be closed after Stop")
	}
}

func TestBasePoller_InitialPollIsImmediate(t *testing.T) {
	mock := &mockPoller{}
	base := newTestPoller(context.Background(), time.Hour)

	require.NoError(t, base.Start(mock))
	defer func() { _ = base.Stop() }()

	require.Eventually(t, func() bool { return mock.getPollCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBasePoller_ErrorsDoNotStopTheLoop(t *testing.T) {
	mock := &mockPoller{pollErr: errors.New("target down")}
	base := newTestPoller(context.Background(), 5*time.Millisecond)

	require.NoError(t, base.Start(mock))
	defer func() { _ = base.Stop() }()

	require.Eventually(t, func() bool { return mock.getPollCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestBasePoller_CyclesNeverOverlap(t *testing.T) {
	mock := &mockPoller{delay: 20 * time.Millisecond}
	base := newTestPoller(context.Background(), time.Millisecond)

	require.NoError(t, base.Start(mock))
	require.Eventually(t, func() bool { return mock.getPollCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, base.Stop())

	mock.mu.Lock()
	defer mock.mu.Unlock()
	for i := 1; i < len(mock.starts) && i < len(mock.ends); i++ {
		assert.False(t, mock.starts[i].Before(mock.ends[i-1]), "cycle %d started before cycle %d ended", i, i-1)
	}
}

func TestBasePoller_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := &mockPoller{}
	base := newTestPoller(ctx, 5*time.Millisecond)

	require.NoError(t, base.Start(mock))
	require.Eventually(t, func() bool { return mock.getPollCount() >= 1 }, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case <-base.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after parent cancellation")
	}
	require.NoError(t, base.Stop())
}

func TestBasePoller_StopBeforeStart(t *testing.T) {
	base := newTestPoller(context.Background(), time.Hour)

	require.NoError(t, base.Stop())

	select {
	case <-base.Done():
	default:
		t.Fatal("Done not closed by Stop")
	}

	// A late Start exits without blocking anyone.
	require.NoError(t, base.Start(&mockPoller{}))
	require.NoError(t, base.Stop())
	assert.False(t, base.isRunning())
}

func TestPollFunc(t *testing.T) {
	called := false
	var p Poller = PollFunc(func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, p.PollOnce(context.Background()))
	assert.True(t, called)
}
