// Package history records the outcome of every upload run in a JSON file so
// the CLI can show what was sent, when, and how it ended.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mcdonaldj/xboxftp/internal/upload"
)

type Entry struct {
	RunID     string    `json:"run_id"`
	Game      string    `json:"game"`
	Archive   string    `json:"archive"`
	Backend   string    `json:"backend"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMS int64     `json:"elapsed_ms"`

	FilesTotal           int   `json:"files_total"`
	FilesTransferred     int   `json:"files_transferred"`
	BytesAlreadyUploaded int64 `json:"bytes_already_uploaded"`
	BytesTransferred     int64 `json:"bytes_transferred"`
}

type History struct {
	Entries []Entry `json:"entries"`
}

// Run groups the entries written by one invocation of the upload command.
type Run struct {
	ID        string
	Backend   string
	StartedAt time.Time
}

// NewRun starts a run with a fresh ID.
func NewRun(backend string, now time.Time) Run {
	return Run{ID: uuid.NewString(), Backend: backend, StartedAt: now}
}

// Entry converts an upload result into a history entry.
func (r Run) Entry(result upload.GameResult) Entry {
	e := Entry{
		RunID:                r.ID,
		Game:                 result.Game,
		Archive:              result.ArchivePath,
		Backend:              r.Backend,
		State:                string(result.State),
		StartedAt:            r.StartedAt,
		ElapsedMS:            result.Elapsed.Milliseconds(),
		FilesTotal:           result.FilesTotal,
		FilesTransferred:     result.FilesTransferred,
		BytesAlreadyUploaded: result.BytesAlreadyUploaded,
		BytesTransferred:     result.BytesTransferred,
	}
	if result.Err != nil {
		e.Error = result.Err.Error()
	}
	return e
}

func Path(dir string) string {
	return filepath.Join(dir, "history.json")
}

func Load(dir string) (*History, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return &History{Entries: []Entry{}}, nil
		}
		return nil, err
	}

	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (h *History) Save(dir string) error {
	path := Path(dir)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (h *History) Add(entries ...Entry) {
	h.Entries = append(h.Entries, entries...)
}

// ForGame returns the entries of one game, oldest first.
func (h *History) ForGame(game string) []Entry {
	var out []Entry
	for _, e := range h.Entries {
		if e.Game == game {
			out = append(out, e)
		}
	}
	return out
}

// Latest returns the most recent entry for game, or nil.
func (h *History) Latest(game string) *Entry {
	for i := len(h.Entries) - 1; i >= 0; i-- {
		if h.Entries[i].Game == game {
			return &h.Entries[i]
		}
	}
	return nil
}

// Prune keeps only the newest keepLast entries and returns how many were dropped.
func (h *History) Prune(keepLast int) int {
	if keepLast <= 0 || len(h.Entries) <= keepLast {
		return 0
	}
	removed := len(h.Entries) - keepLast
	h.Entries = append([]Entry(nil), h.Entries[removed:]...)
	return removed
}
