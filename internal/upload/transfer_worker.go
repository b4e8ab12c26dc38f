package upload

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// transferWorker moves requests from the shared queue to the repository over
// its own connection and reports each handled request as finished.
type transferWorker struct {
	game      string
	factory   ports.RepositoryFactory
	repo      ports.GameRepository
	requests  *queue[TransferRequest]
	finished  *queue[completion]
	notifier  ports.ProgressNotifier
	pending   *atomic.Int64
	skipCheck int64
	wait      time.Duration
	loop      pollLoop
}

func newTransferWorker(name, game string, factory ports.RepositoryFactory, requests *queue[TransferRequest],
	finished *queue[completion], pending *atomic.Int64, notifier ports.ProgressNotifier, opts Options) *transferWorker {
	w := &transferWorker{
		game:      game,
		factory:   factory,
		requests:  requests,
		finished:  finished,
		notifier:  notifier,
		pending:   pending,
		skipCheck: opts.SkipCheckThreshold,
		wait:      opts.TransferWait,
	}
	w.loop = pollLoop{
		name:     name,
		setup:    w.connect,
		iterate:  w.processNext,
		teardown: w.disconnect,
	}
	return w
}

func (w *transferWorker) connect(ctx context.Context) error {
	w.repo = w.factory.Create()
	return w.repo.Connect(ctx)
}

func (w *transferWorker) disconnect() error {
	if w.repo == nil {
		return nil
	}
	return w.repo.Disconnect()
}

func (w *transferWorker) processNext(ctx context.Context, stop <-chan struct{}) error {
	req, ok := w.requests.Take(ctx, stop, w.wait)
	if !ok {
		return nil
	}
	return w.transfer(ctx, req)
}

// transfer handles one request. A failure is reported and returned, which
// ends the worker and fails the archive.
func (w *transferWorker) transfer(ctx context.Context, req TransferRequest) (err error) {
	defer func() {
		if releaseErr := req.Release(); releaseErr != nil && err == nil {
			err = releaseErr
		}
		w.pending.Add(-1)
	}()

	w.notifier.StartingFileUpload(w.game, req.Path())

	if req.Length() > w.skipCheck {
		present, err := w.repo.Exists(ctx, w.game, req.Path(), req.Length())
		if err != nil {
			w.notifier.FileUploadFailed(w.game, req.Path(), err)
			return fmt.Errorf("checking %s: %w", req.Path(), err)
		}
		if present {
			w.notifier.FileAlreadyExists(w.game, req.Path())
			return w.finish(ctx, req)
		}
	}

	if err := w.store(ctx, req); err != nil {
		w.notifier.FileUploadFailed(w.game, req.Path(), err)
		return err
	}
	return w.finish(ctx, req)
}

func (w *transferWorker) store(ctx context.Context, req TransferRequest) error {
	rc, err := req.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", req.Path(), err)
	}
	defer func() { _ = rc.Close() }()

	if err := w.repo.Store(ctx, w.game, req.Path(), rc); err != nil {
		return fmt.Errorf("storing %s: %w", req.Path(), err)
	}
	return nil
}

func (w *transferWorker) finish(ctx context.Context, req TransferRequest) error {
	return w.finished.Put(ctx, completion{path: req.Path(), length: req.Length()})
}
