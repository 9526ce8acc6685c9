package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/config"
)

func testPoolConfig() config.WorkerConfig {
	return config.WorkerConfig{AnalysisWorkers: 2, QueueSize: 4, MaxAttempts: 3, RetryBackoffMillis: 1}
}

func TestPoolRetriesUntilSuccess(t *testing.T) {
	pool := NewPool("test", testPoolConfig(), zap.NewNop())
	pool.Start(context.Background())

	var calls int32
	done := make(chan struct{})
	require.NoError(t, pool.Submit(Job{Name: "flaky", Run: func(context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not succeed")
	}
	require.NoError(t, pool.Stop(context.Background()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPoolGivesUpAfterMaxAttempts(t *testing.T) {
	pool := NewPool("test", testPoolConfig(), zap.NewNop())
	pool.Start(context.Background())

	var calls int32
	require.NoError(t, pool.Submit(Job{Name: "broken", Run: func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("always")
	}}))
	require.NoError(t, pool.Stop(context.Background()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPoolDoesNotRetryPermanentErrors(t *testing.T) {
	gone := errors.New("gone")
	pool := NewPool("test", testPoolConfig(), zap.NewNop(), WithPermanentErrors(func(err error) bool {
		return errors.Is(err, gone)
	}))
	pool.Start(context.Background())

	var calls int32
	require.NoError(t, pool.Submit(Job{Name: "missing", Run: func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return gone
	}}))
	require.NoError(t, pool.Stop(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPoolQueueBoundsAndStop(t *testing.T) {
	cfg := testPoolConfig()
	cfg.QueueSize = 1
	pool := NewPool("test", cfg, zap.NewNop())

	noop := Job{Name: "noop", Run: func(context.Context) error { return nil }}
	require.NoError(t, pool.Submit(noop))
	assert.ErrorIs(t, pool.Submit(noop), ErrQueueFull)

	pool.Start(context.Background())
	require.NoError(t, pool.Stop(context.Background()))
	assert.ErrorIs(t, pool.Submit(noop), ErrStopped)
	assert.NoError(t, pool.Stop(context.Background()), "second stop is harmless")
}
