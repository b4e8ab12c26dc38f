package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// directoryWorker creates the game root and then every queued directory, one
// at a time, so that files sharing a parent never race to create it.
type directoryWorker struct {
	game    string
	factory ports.RepositoryFactory
	repo    ports.GameRepository
	dirs    *queue[string]
	wait    time.Duration
	loop    pollLoop
}

func newDirectoryWorker(game string, factory ports.RepositoryFactory, dirs *queue[string], opts Options) *directoryWorker {
	w := &directoryWorker{
		game:    game,
		factory: factory,
		dirs:    dirs,
		wait:    opts.DirectoryWait,
	}
	w.loop = pollLoop{
		name:     "directories",
		setup:    w.setup,
		iterate:  w.processNext,
		teardown: w.disconnect,
	}
	return w
}

func (w *directoryWorker) setup(ctx context.Context) error {
	w.repo = w.factory.Create()
	if err := w.repo.Connect(ctx); err != nil {
		return err
	}
	if err := w.repo.CreateGame(ctx, w.game); err != nil {
		return errors.Join(fmt.Errorf("creating game %s: %w", w.game, err), w.repo.Disconnect())
	}
	return nil
}

func (w *directoryWorker) disconnect() error {
	if w.repo == nil {
		return nil
	}
	return w.repo.Disconnect()
}

func (w *directoryWorker) processNext(ctx context.Context, stop <-chan struct{}) error {
	dir, ok := w.dirs.Take(ctx, stop, w.wait)
	if !ok {
		return nil
	}
	if err := w.repo.CreateDirectory(ctx, w.game, dir); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}
