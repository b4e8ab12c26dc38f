package lognotifier

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
}

func TestWritesToSharedLog(t *testing.T) {
	var buf bytes.Buffer
	n := New(zerolog.New(&buf))

	n.GameAddedToUploadQueue("Halo")
	n.FinishedFileUpload("Halo", "default.xbe", 42)

	out := buf.String()
	for _, want := range []string{`"game":"Halo"`, "Added game to upload queue", `"percent":42`, `"file":"default.xbe"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestErrorsLoggedAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	n := New(zerolog.New(&buf))

	n.GameUploadError("Halo", errors.New("boom"), "upload of Halo failed while transferring")

	out := buf.String()
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("expected error level, got %s", out)
	}
	if !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("expected error field, got %s", out)
	}
}

func TestGameLogFile(t *testing.T) {
	dir := t.TempDir()
	n := New(zerolog.Nop(), WithGameLogDir(dir), WithClock(fixedClock))

	n.StartingGameUpload("Halo")
	n.ReportTotalFilesToTransfer("Halo", 3)
	n.FinishedGameUpload("Halo", time.Second)

	path := filepath.Join(dir, "202403091405-Halo.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)
	for _, want := range []string{"Starting game upload", `"files":3`, "Finished game upload"} {
		if !strings.Contains(content, want) {
			t.Errorf("game log missing %s:\n%s", want, content)
		}
	}

	if len(n.games) != 0 {
		t.Errorf("open game logs = %d, expected 0", len(n.games))
	}
}

func TestEventsAfterFinishOnlyReachSharedLog(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	n := New(zerolog.New(&buf), WithGameLogDir(dir), WithClock(fixedClock))

	n.StartingGameUpload("Halo")
	n.GameUploadError("Halo", errors.New("boom"), "failed")
	n.GameAddedToUploadQueue("Halo")

	data, err := os.ReadFile(filepath.Join(dir, "202403091405-Halo.log"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), "Added game to upload queue") {
		t.Error("event after close leaked into the game log")
	}
	if !strings.Contains(buf.String(), "Added game to upload queue") {
		t.Error("event missing from the shared log")
	}
}

func TestCloseReleasesOpenLogs(t *testing.T) {
	n := New(zerolog.Nop(), WithGameLogDir(t.TempDir()), WithClock(fixedClock))

	n.StartingGameUpload("Halo")
	n.StartingGameUpload("Fable")

	if err := n.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(n.games) != 0 {
		t.Errorf("open game logs = %d, expected 0", len(n.games))
	}
}

func TestNoGameLogWithoutDir(t *testing.T) {
	n := New(zerolog.Nop())
	n.StartingGameUpload("Halo")
	if len(n.games) != 0 {
		t.Errorf("open game logs = %d, expected 0", len(n.games))
	}
}
