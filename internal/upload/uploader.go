// Package upload drives the transfer of game archives to a remote repository:
// resume detection, directory precreation and the bounded transfer pipeline.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// State is the position of one archive in the upload state machine.
type State string

const (
	StateQueued              State = "queued"
	StateCheckingResume      State = "checking resume"
	StateCreatingDirectories State = "creating directories"
	StateTransferring        State = "transferring"
	StateDraining            State = "draining"
	StateFinished            State = "finished"
	StateFailed              State = "failed"
	StateSkipped             State = "skipped"
)

// finishedCapacity bounds the completion queue. Completions are small, so
// this only needs to absorb bursts while the progress worker notifies.
const finishedCapacity = 64

// GameResult is the outcome of one archive.
type GameResult struct {
	Game        string
	ArchivePath string
	State       State
	Err         error
	Elapsed     time.Duration

	FilesTotal           int
	FilesTransferred     int
	BytesAlreadyUploaded int64
	BytesTransferred     int64
}

// CheckResult is the outcome of a resume check without transfer.
type CheckResult struct {
	Game       string
	FilesTotal int
	BytesTotal int64
	Report     ResumeReport
}

// Uploader uploads archives one at a time.
type Uploader struct {
	archives ports.ArchiveReader
	repos    ports.RepositoryFactory
	notifier ports.ProgressNotifier
	fs       ports.FileSystem
	opts     Options
}

// New creates an Uploader. Zero fields of opts take their DefaultOptions value.
func New(archives ports.ArchiveReader, repos ports.RepositoryFactory, notifier ports.ProgressNotifier,
	fsys ports.FileSystem, opts Options) *Uploader {
	return &Uploader{
		archives: archives,
		repos:    repos,
		notifier: notifier,
		fs:       fsys,
		opts:     opts.withDefaults(),
	}
}

// GameName derives the game name from an archive path: the base name
// without its extension.
func GameName(archivePath string) string {
	base := filepath.Base(archivePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Execute uploads every archive in order and returns one result per path.
// A failed archive does not stop the batch. Once ctx is cancelled the
// remaining archives are reported as skipped.
func (u *Uploader) Execute(ctx context.Context, archivePaths []string) []GameResult {
	for _, p := range archivePaths {
		u.notifier.GameAddedToUploadQueue(GameName(p))
	}

	results := make([]GameResult, 0, len(archivePaths))
	for _, p := range archivePaths {
		if err := ctx.Err(); err != nil {
			results = append(results, GameResult{
				Game:        GameName(p),
				ArchivePath: p,
				State:       StateSkipped,
				Err:         err,
			})
			continue
		}
		results = append(results, u.UploadArchive(ctx, p))
	}
	return results
}

// UploadArchive runs the full state machine for one archive. Every error,
// including a panic, is contained in the returned result.
func (u *Uploader) UploadArchive(ctx context.Context, archivePath string) (result GameResult) {
	game := GameName(archivePath)
	result = GameResult{Game: game, ArchivePath: archivePath, State: StateQueued}
	start := time.Now()

	u.notifier.StartingGameUpload(game)

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic: %v", r)
		}
		result.Elapsed = time.Since(start)
		if result.Err != nil {
			message := fmt.Sprintf("upload of %s failed while %s", game, result.State)
			result.State = StateFailed
			u.notifier.GameUploadError(game, result.Err, message)
			return
		}
		result.State = StateFinished
		u.notifier.FinishedGameUpload(game, result.Elapsed)
	}()

	result.Err = u.upload(ctx, game, archivePath, &result)
	return result
}

func (u *Uploader) upload(ctx context.Context, game, archivePath string, result *GameResult) (err error) {
	archive, err := u.archives.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", archivePath, err)
	}
	defer func() {
		if closeErr := archive.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing archive %s: %w", archivePath, closeErr)
		}
	}()

	entries := sortedEntries(archive.Files())
	result.FilesTotal = len(entries)

	result.State = StateCheckingResume
	report, err := u.checkResume(ctx, game, entries)
	if err != nil {
		return err
	}
	result.BytesAlreadyUploaded = report.SizeUploaded

	if report.SizeUploaded == 0 {
		result.State = StateCreatingDirectories
		if err := u.createDirectories(ctx, game, archive.Directories()); err != nil {
			return err
		}
	} else {
		u.notifier.SkippedCreatingFolderStructure(game)
	}

	result.State = StateTransferring
	return u.transfer(ctx, game, report, result)
}

// Check runs only the resume check for an archive.
func (u *Uploader) Check(ctx context.Context, archivePath string) (result CheckResult, err error) {
	game := GameName(archivePath)
	archive, err := u.archives.Open(archivePath)
	if err != nil {
		return CheckResult{}, fmt.Errorf("opening archive %s: %w", archivePath, err)
	}
	defer func() { _ = archive.Close() }()

	entries := sortedEntries(archive.Files())
	report, err := u.checkResume(ctx, game, entries)
	if err != nil {
		return CheckResult{}, err
	}
	return CheckResult{
		Game:       game,
		FilesTotal: len(entries),
		BytesTotal: totalSize(entries),
		Report:     report,
	}, nil
}

func sortedEntries(files []ports.ArchiveEntry) []ports.ArchiveEntry {
	entries := slices.Clone(files)
	slices.SortStableFunc(entries, func(a, b ports.ArchiveEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries
}

// checkResume runs the resume strategy on a connection of its own.
func (u *Uploader) checkResume(ctx context.Context, game string, entries []ports.ArchiveEntry) (report ResumeReport, err error) {
	u.notifier.CheckingForUploadedFiles(game)

	repo := u.repos.Create()
	if err := repo.Connect(ctx); err != nil {
		return ResumeReport{}, fmt.Errorf("connecting for resume check: %w", err)
	}
	defer func() {
		if disconnectErr := repo.Disconnect(); disconnectErr != nil && err == nil {
			err = fmt.Errorf("disconnecting after resume check: %w", disconnectErr)
		}
	}()

	report, err = u.opts.Strategy.Resume(ctx, entries, u.notifier, game, repo)
	if err != nil {
		return ResumeReport{}, fmt.Errorf("resume check: %w", err)
	}
	return report, nil
}

// createDirectories creates the game root and every directory of the archive
// through a single directory worker, then stops it.
func (u *Uploader) createDirectories(ctx context.Context, game string, dirs []string) error {
	u.notifier.CreateFolderStructure(game)

	pending := newQueue[string](len(dirs), nil)
	for _, dir := range dirs {
		if err := pending.Put(ctx, dir); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	worker := newDirectoryWorker(game, u.repos, pending, u.opts)
	run, err := worker.loop.Start(gctx)
	if err != nil {
		return err
	}
	g.Go(run)

	waitErr := waitUntil(gctx, u.opts.DrainPoll, func() bool { return pending.Len() == 0 })
	stopErr := worker.loop.Stop(u.opts.StopTimeout)
	if err := pipelineError(waitErr, wait(gctx, g, stopErr), stopErr); err != nil {
		return err
	}

	u.notifier.FinishedCreatingFolderStructure(game)
	return nil
}

// transfer runs the producer on the calling goroutine against the transfer
// and progress workers, then drains and stops them.
func (u *Uploader) transfer(ctx context.Context, game string, report ResumeReport, result *GameResult) (err error) {
	toUpload := totalSize(report.RemainingFiles)
	u.notifier.ReportTotalBytesToUpload(game, toUpload)
	u.notifier.ReportTotalFilesToTransfer(game, len(report.RemainingFiles))

	if len(report.RemainingFiles) == 0 {
		return nil
	}

	requests := newQueue[TransferRequest](u.opts.MaxOutstandingRequests, func(r TransferRequest) int64 { return r.Length() })
	finished := newQueue[completion](finishedCapacity, nil)
	staging := filepath.Join(u.opts.TempDir, game)
	var pending atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	progress := newProgressWorker(game, u.notifier, finished, report.SizeUploaded, toUpload, u.opts)
	workers := make([]*transferWorker, 0, u.opts.TransferWorkers)

	defer func() {
		for _, req := range requests.Drain() {
			_ = req.Release()
		}
		if removeErr := u.fs.RemoveAll(staging); removeErr != nil && err == nil {
			err = fmt.Errorf("removing staging directory %s: %w", staging, removeErr)
		}
		result.BytesTransferred = progress.Uploaded()
		result.FilesTransferred = progress.Count()
	}()

	run, err := progress.loop.Start(gctx)
	if err != nil {
		return err
	}
	g.Go(run)

	for i := 0; i < u.opts.TransferWorkers; i++ {
		worker := newTransferWorker(fmt.Sprintf("transfer-%d", i+1), game, u.repos, requests, finished, &pending, u.notifier, u.opts)
		run, err := worker.loop.Start(gctx)
		if err != nil {
			stopErr := u.stopWorkers(workers, progress)
			return errors.Join(err, wait(gctx, g, stopErr), stopErr)
		}
		workers = append(workers, worker)
		g.Go(run)
	}

	produceErr := u.produce(gctx, game, staging, report.RemainingFiles, requests, &pending)
	if produceErr == nil {
		result.State = StateDraining
		u.notifier.WaitingForUploadsToComplete(game)
		produceErr = waitUntil(gctx, u.opts.DrainPoll, func() bool { return pending.Load() == 0 })
	}

	stopErr := u.stopWorkers(workers, progress)
	return pipelineError(produceErr, wait(gctx, g, stopErr), stopErr)
}

// produce queues one request per entry, in order, honoring both gates.
func (u *Uploader) produce(ctx context.Context, game, staging string, entries []ports.ArchiveEntry,
	requests *queue[TransferRequest], pending *atomic.Int64) error {
	for _, entry := range entries {
		if err := waitUntil(ctx, u.opts.OutstandingPoll, func() bool {
			return requests.Len() < u.opts.MaxOutstandingRequests
		}); err != nil {
			return err
		}
		if err := waitUntil(ctx, u.opts.MemoryPoll, func() bool {
			return requests.Bytes() <= u.opts.MaxQueuedBytes
		}); err != nil {
			return err
		}

		req, err := u.newRequest(game, staging, entry)
		if err != nil {
			return err
		}

		u.notifier.AddingToUploadQueue(game, entry.Name())
		pending.Add(1)
		if err := requests.Put(ctx, req); err != nil {
			pending.Add(-1)
			_ = req.Release()
			return err
		}
	}
	return nil
}

// newRequest reads a small entry into memory or extracts a large one to the
// staging directory.
func (u *Uploader) newRequest(game, staging string, entry ports.ArchiveEntry) (TransferRequest, error) {
	if entry.UncompressedSize() > u.opts.InMemoryThreshold {
		u.notifier.ExtractFileToDisk(game, entry.Name())
		if err := u.fs.MkdirAll(staging, 0o755); err != nil {
			return nil, fmt.Errorf("creating staging directory %s: %w", staging, err)
		}
		tempPath, err := entry.ExtractTo(staging)
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w", entry.Name(), err)
		}
		return newStagedRequest(u.fs, entry.Name(), tempPath)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", entry.Name(), err)
	}
	defer func() { _ = rc.Close() }()

	data := make([]byte, entry.UncompressedSize())
	if _, err := io.ReadFull(rc, data); err != nil {
		return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
	}
	return newMemoryRequest(entry.Name(), data), nil
}

// stopWorkers stops the transfer workers first so their last completions
// reach the progress worker before it drains.
func (u *Uploader) stopWorkers(workers []*transferWorker, progress *progressWorker) error {
	var errs []error
	for _, w := range workers {
		errs = append(errs, w.loop.Stop(u.opts.StopTimeout))
	}
	errs = append(errs, progress.loop.Stop(u.opts.StopTimeout))
	return errors.Join(errs...)
}

// wait joins the group unless a worker was abandoned, in which case joining
// could block forever. The group context then still carries the first worker
// error as its cause.
func wait(gctx context.Context, g *errgroup.Group, stopErr error) error {
	if errors.Is(stopErr, ErrStopTimeout) {
		if gctx.Err() == nil {
			return nil
		}
		return context.Cause(gctx)
	}
	return g.Wait()
}

// pipelineError prefers a worker's error over the cancellation it caused in
// the producer.
func pipelineError(produceErr, runErr, stopErr error) error {
	if runErr != nil && (errors.Is(produceErr, context.Canceled) || errors.Is(produceErr, context.DeadlineExceeded)) {
		produceErr = nil
	}
	return errors.Join(produceErr, runErr, stopErr)
}

// waitUntil polls cond every interval until it holds or ctx is done.
func waitUntil(ctx context.Context, interval time.Duration, cond func() bool) error {
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil
}
