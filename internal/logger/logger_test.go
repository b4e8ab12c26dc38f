package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSetupConsole(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(Options{Level: "debug", Console: true, Out: &buf}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer Setup(Options{})

	log := New("ftp")
	log.Debug().Msg("connected")
	out := buf.String()
	if !strings.Contains(out, "connected") || !strings.Contains(out, "ftp") {
		t.Errorf("console output = %q, expected message and component", out)
	}
}

func TestSetupInvalidLevel(t *testing.T) {
	if err := Setup(Options{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestSetupFile(t *testing.T) {
	dir := t.TempDir()
	if err := Setup(Options{Dir: dir}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer Setup(Options{})

	if LogPath() != filepath.Join(dir, "xboxftp.log") {
		t.Errorf("LogPath = %q", LogPath())
	}
	log := New("cli")
	log.Info().Msg("hello")
	data, err := os.ReadFile(LogPath())
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"component":"cli"`) {
		t.Errorf("log file = %q, expected component field", data)
	}
}

func TestForGame(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

	l, closer, err := ForGame(dir, "Halo: CE", now)
	if err != nil {
		t.Fatalf("ForGame failed: %v", err)
	}
	l.Info().Msg("starting")
	closer.Close()

	path := filepath.Join(dir, "202403091405-Halo_ CE.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading game log: %v", err)
	}
	if !strings.Contains(string(data), `"game":"Halo: CE"`) {
		t.Errorf("game log = %q, expected game field", data)
	}
}
