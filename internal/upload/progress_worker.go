package upload

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// progressWorker turns finished requests into percent-complete events.
type progressWorker struct {
	game            string
	notifier        ports.ProgressNotifier
	finished        *queue[completion]
	alreadyUploaded int64
	totalToUpload   int64
	bytesUploaded   atomic.Int64
	filesUploaded   atomic.Int64
	wait            time.Duration
	loop            pollLoop
}

func newProgressWorker(game string, notifier ports.ProgressNotifier, finished *queue[completion],
	alreadyUploaded, totalToUpload int64, opts Options) *progressWorker {
	w := &progressWorker{
		game:            game,
		notifier:        notifier,
		finished:        finished,
		alreadyUploaded: alreadyUploaded,
		totalToUpload:   totalToUpload,
		wait:            opts.ProgressWait,
	}
	w.loop = pollLoop{
		name:     "progress",
		iterate:  w.processNext,
		teardown: w.flush,
	}
	return w
}

func (w *progressWorker) processNext(ctx context.Context, stop <-chan struct{}) error {
	c, ok := w.finished.Take(ctx, stop, w.wait)
	if ok {
		w.record(c)
	}
	return nil
}

// flush records completions that arrived after the loop stopped taking.
func (w *progressWorker) flush() error {
	for _, c := range w.finished.Drain() {
		w.record(c)
	}
	return nil
}

func (w *progressWorker) record(c completion) {
	uploaded := w.bytesUploaded.Add(c.length)
	w.filesUploaded.Add(1)
	w.notifier.FinishedFileUpload(w.game, c.path, percentComplete(w.alreadyUploaded, uploaded, w.totalToUpload))
}

// Uploaded is the number of bytes credited so far.
func (w *progressWorker) Uploaded() int64 {
	return w.bytesUploaded.Load()
}

// Count is the number of completions recorded so far.
func (w *progressWorker) Count() int {
	return int(w.filesUploaded.Load())
}

// percentComplete is floor(100 * (already + uploaded) / (already + toUpload)),
// capped at 100. An empty game counts as complete.
func percentComplete(already, uploaded, toUpload int64) int {
	total := already + toUpload
	if total <= 0 {
		return 100
	}
	percent := (already + uploaded) * 100 / total
	if percent > 100 {
		return 100
	}
	return int(percent)
}
