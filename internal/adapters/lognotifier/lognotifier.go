// Package lognotifier reports upload progress through zerolog. Besides the
// shared logger, each game gets its own log file for the duration of its
// upload.
package lognotifier

import (
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcdonaldj/xboxftp/internal/logger"
	"github.com/mcdonaldj/xboxftp/internal/ports"
)

type gameLog struct {
	log    zerolog.Logger
	closer io.Closer
}

// Notifier implements ports.ProgressNotifier. It is safe for concurrent use.
type Notifier struct {
	log zerolog.Logger
	dir string
	now func() time.Time

	mu    sync.Mutex
	games map[string]gameLog
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithGameLogDir enables per-game log files in dir.
func WithGameLogDir(dir string) Option {
	return func(n *Notifier) {
		n.dir = dir
	}
}

// WithClock replaces time.Now for file naming. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		n.now = now
	}
}

// New creates a notifier writing to log.
func New(log zerolog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		log:   log,
		now:   time.Now,
		games: make(map[string]gameLog),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Close releases any per-game log files still open.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	var firstErr error
	for game, g := range n.games {
		if err := g.closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(n.games, game)
	}
	return firstErr
}

func (n *Notifier) openGame(game string) {
	if n.dir == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.games[game]; ok {
		return
	}
	l, closer, err := logger.ForGame(n.dir, game, n.now())
	if err != nil {
		n.log.Warn().Err(err).Str("game", game).Msg("Unable to open game log")
		return
	}
	n.games[game] = gameLog{log: l, closer: closer}
}

func (n *Notifier) closeGame(game string) {
	n.mu.Lock()
	g, ok := n.games[game]
	delete(n.games, game)
	n.mu.Unlock()
	if ok {
		_ = g.closer.Close()
	}
}

// write sends one entry to the shared log and, when open, the game's log.
func (n *Notifier) write(game string, level zerolog.Level, msg string, fields func(*zerolog.Event)) {
	e := n.log.WithLevel(level).Str("game", game)
	if fields != nil {
		fields(e)
	}
	e.Msg(msg)

	n.mu.Lock()
	g, ok := n.games[game]
	n.mu.Unlock()
	if !ok {
		return
	}
	ge := g.log.WithLevel(level)
	if fields != nil {
		fields(ge)
	}
	ge.Msg(msg)
}

func (n *Notifier) GameAddedToUploadQueue(game string) {
	n.write(game, zerolog.InfoLevel, "Added game to upload queue", nil)
}

func (n *Notifier) StartingGameUpload(game string) {
	n.openGame(game)
	n.write(game, zerolog.InfoLevel, "Starting game upload", nil)
}

func (n *Notifier) FinishedGameUpload(game string, elapsed time.Duration) {
	n.write(game, zerolog.InfoLevel, "Finished game upload", func(e *zerolog.Event) {
		e.Dur("elapsed", elapsed)
	})
	n.closeGame(game)
}

func (n *Notifier) GameUploadError(game string, err error, message string) {
	n.write(game, zerolog.ErrorLevel, message, func(e *zerolog.Event) {
		e.Err(err)
	})
	n.closeGame(game)
}

func (n *Notifier) ReportTotalFilesToTransfer(game string, count int) {
	n.write(game, zerolog.InfoLevel, "Files to transfer", func(e *zerolog.Event) {
		e.Int("files", count)
	})
}

func (n *Notifier) ReportTotalBytesToUpload(game string, bytes int64) {
	n.write(game, zerolog.InfoLevel, "Bytes to upload", func(e *zerolog.Event) {
		e.Int64("bytes", bytes)
	})
}

func (n *Notifier) ExtractFileToDisk(game, file string) {
	n.write(game, zerolog.DebugLevel, "Extracting file to disk", fileField(file))
}

func (n *Notifier) AddingToUploadQueue(game, file string) {
	n.write(game, zerolog.DebugLevel, "Adding file to upload queue", fileField(file))
}

func (n *Notifier) CreateFolderStructure(game string) {
	n.write(game, zerolog.InfoLevel, "Creating folder structure", nil)
}

func (n *Notifier) FinishedCreatingFolderStructure(game string) {
	n.write(game, zerolog.InfoLevel, "Finished creating folder structure", nil)
}

func (n *Notifier) SkippedCreatingFolderStructure(game string) {
	n.write(game, zerolog.InfoLevel, "Skipped creating folder structure, resuming upload", nil)
}

func (n *Notifier) CheckingForUploadedFiles(game string) {
	n.write(game, zerolog.InfoLevel, "Checking for uploaded files", nil)
}

func (n *Notifier) CheckingForUploadedFile(game, file string) {
	n.write(game, zerolog.DebugLevel, "Checking for uploaded file", fileField(file))
}

func (n *Notifier) FileAlreadyExists(game, file string) {
	n.write(game, zerolog.DebugLevel, "File already exists", fileField(file))
}

func (n *Notifier) WaitingForUploadsToComplete(game string) {
	n.write(game, zerolog.InfoLevel, "Waiting for uploads to complete", nil)
}

func (n *Notifier) StartingFileUpload(game, file string) {
	n.write(game, zerolog.DebugLevel, "Starting file upload", fileField(file))
}

func (n *Notifier) FinishedFileUpload(game, file string, percentComplete int) {
	n.write(game, zerolog.InfoLevel, "Finished file upload", func(e *zerolog.Event) {
		e.Str("file", file).Int("percent", percentComplete)
	})
}

func (n *Notifier) FileUploadFailed(game, file string, err error) {
	n.write(game, zerolog.WarnLevel, "File upload failed", func(e *zerolog.Event) {
		e.Str("file", file).Err(err)
	})
}

func fileField(file string) func(*zerolog.Event) {
	return func(e *zerolog.Event) {
		e.Str("file", file)
	}
}

// Compile-time check that Notifier implements ports.ProgressNotifier.
var _ ports.ProgressNotifier = (*Notifier)(nil)
