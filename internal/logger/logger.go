// Package logger configures the process-wide zerolog logger and the
// rotating log files written next to it.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup.
type Options struct {
	// Level is a zerolog level name. Empty means info.
	Level string
	// Dir receives the rotating xboxftp.log file. Empty disables file logging.
	Dir string
	// Console writes human readable output to Out.
	Console bool
	// Out is the console destination. Defaults to os.Stderr.
	Out io.Writer
}

var (
	mu      sync.RWMutex
	base    = zerolog.New(io.Discard)
	logPath string
)

// Setup replaces the base logger. It is called once at startup.
func Setup(opts Options) error {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	var writers []io.Writer
	if opts.Console {
		out := opts.Out
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
	}

	path := ""
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		path = filepath.Join(opts.Dir, "xboxftp.log")
		writers = append(writers, rotatingFile(path))
	}

	var w io.Writer = io.Discard
	if len(writers) > 0 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	mu.Lock()
	defer mu.Unlock()
	base = zerolog.New(w).Level(level).With().Timestamp().Logger()
	logPath = path
	return nil
}

// Default returns the base logger.
func Default() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// New returns a child of the base logger tagged with component.
func New(component string) zerolog.Logger {
	return Default().With().Str("component", component).Logger()
}

// LogPath returns the path of the main log file, or "" when file logging is off.
func LogPath() string {
	mu.RLock()
	defer mu.RUnlock()
	return logPath
}

// ForGame opens a dedicated log file for one game upload, named
// <yyyyMMddHHmm>-<game>.log inside dir. Closing the returned io.Closer
// releases the file.
func ForGame(dir, game string, now time.Time) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating log directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.log", now.Format("200601021504"), sanitize(game))
	file := rotatingFile(filepath.Join(dir, name))

	mu.RLock()
	level := base.GetLevel()
	mu.RUnlock()

	l := zerolog.New(file).Level(level).With().Timestamp().Str("game", game).Logger()
	return l, file, nil
}

func rotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}

// sanitize keeps game names usable as file names.
func sanitize(game string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, game)
}
