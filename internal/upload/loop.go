package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrStopTimeout is returned by Stop when a worker did not finish its current
// item in time. The worker goroutine is abandoned.
var ErrStopTimeout = errors.New("worker did not stop in time")

// pollLoop runs iterate repeatedly on its own goroutine until stopped.
// setup runs synchronously in Start. teardown runs on the loop goroutine once
// the last iteration has returned, so it never overlaps an iteration.
type pollLoop struct {
	name     string
	setup    func(ctx context.Context) error
	iterate  func(ctx context.Context, stop <-chan struct{}) error
	teardown func() error

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Start runs setup and returns the loop body, which the caller must run,
// typically through errgroup.Group.Go. The body blocks until the loop exits
// and returns the iteration or teardown error.
func (l *pollLoop) Start(ctx context.Context) (func() error, error) {
	if l.setup != nil {
		if err := l.setup(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", l.name, err)
		}
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})

	run := func() (err error) {
		defer close(l.done)
		defer func() {
			if l.teardown == nil {
				return
			}
			if tdErr := l.teardown(); tdErr != nil {
				err = errors.Join(err, fmt.Errorf("%s: %w", l.name, tdErr))
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: panic: %v", l.name, r)
			}
		}()
		for {
			select {
			case <-l.stop:
				return nil
			case <-ctx.Done():
				return nil
			default:
			}
			if err := l.iterate(ctx, l.stop); err != nil {
				return fmt.Errorf("%s: %w", l.name, err)
			}
		}
	}
	return run, nil
}

// Stop signals the loop and waits up to timeout for it to exit. On timeout
// the loop goroutine is abandoned; it still tears down on its own once the
// current iteration returns.
func (l *pollLoop) Stop(timeout time.Duration) error {
	if l.stop == nil {
		return nil
	}
	l.stopOnce.Do(func() { close(l.stop) })

	select {
	case <-l.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%s: %w", l.name, ErrStopTimeout)
	}
}
