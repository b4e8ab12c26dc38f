package upload

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollLoopRunsUntilStopped(t *testing.T) {
	var iterations atomic.Int64
	var tornDown atomic.Bool
	l := pollLoop{
		name: "test",
		iterate: func(ctx context.Context, stop <-chan struct{}) error {
			iterations.Add(1)
			time.Sleep(time.Millisecond)
			return nil
		},
		teardown: func() error {
			tornDown.Store(true)
			return nil
		},
	}

	run, err := l.Start(context.Background())
	require.NoError(t, err)
	result := make(chan error, 1)
	go func() { result <- run() }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Stop(time.Second))
	assert.NoError(t, <-result)
	assert.Positive(t, iterations.Load())
	assert.True(t, tornDown.Load())
}

func TestPollLoopSetupFailure(t *testing.T) {
	boom := errors.New("refused")
	l := pollLoop{
		name:    "transfer-1",
		setup:   func(context.Context) error { return boom },
		iterate: func(context.Context, <-chan struct{}) error { return nil },
	}
	_, err := l.Start(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "transfer-1")

	// Stopping a loop that never started is a no-op.
	assert.NoError(t, l.Stop(time.Millisecond))
}

func TestPollLoopReturnsIterationError(t *testing.T) {
	boom := errors.New("store failed")
	l := pollLoop{
		name:    "transfer-2",
		iterate: func(context.Context, <-chan struct{}) error { return boom },
	}
	run, err := l.Start(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, run(), boom)
	assert.NoError(t, l.Stop(time.Second))
}

func TestPollLoopRecoversPanic(t *testing.T) {
	l := pollLoop{
		name:    "progress",
		iterate: func(context.Context, <-chan struct{}) error { panic("bad notifier") },
	}
	run, err := l.Start(context.Background())
	require.NoError(t, err)
	err = run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad notifier")
}

func TestPollLoopStopTimeoutLeavesTeardownToLoop(t *testing.T) {
	release := make(chan struct{})
	var iterating, tornDown atomic.Bool
	l := pollLoop{
		name: "stuck",
		iterate: func(context.Context, <-chan struct{}) error {
			iterating.Store(true)
			<-release
			iterating.Store(false)
			return nil
		},
		teardown: func() error {
			if iterating.Load() {
				return errors.New("teardown overlapped an iteration")
			}
			tornDown.Store(true)
			return nil
		},
	}
	run, err := l.Start(context.Background())
	require.NoError(t, err)
	result := make(chan error, 1)
	go func() { result <- run() }()
	require.Eventually(t, iterating.Load, time.Second, time.Millisecond)

	err = l.Stop(20 * time.Millisecond)
	require.ErrorIs(t, err, ErrStopTimeout)
	assert.False(t, tornDown.Load(), "teardown ran while the iteration was still in progress")

	close(release)
	assert.NoError(t, <-result)
	assert.True(t, tornDown.Load())
}

func TestPollLoopReturnsTeardownError(t *testing.T) {
	boom := errors.New("quit failed")
	l := pollLoop{
		name:     "transfer-1",
		iterate:  func(context.Context, <-chan struct{}) error { return nil },
		teardown: func() error { return boom },
	}
	run, err := l.Start(context.Background())
	require.NoError(t, err)
	result := make(chan error, 1)
	go func() { result <- run() }()

	require.NoError(t, l.Stop(time.Second))
	err = <-result
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "transfer-1")
}
