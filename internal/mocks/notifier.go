package mocks

import (
	"sync"
	"time"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// Event is one notification captured by RecordingNotifier.
type Event struct {
	Kind    string
	Game    string
	File    string
	Percent int
	Count   int
	Bytes   int64
	Err     error
	Message string
}

// RecordingNotifier implements ports.ProgressNotifier by recording every
// event in order. It is safe for concurrent use.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []Event
	// PanicOn makes the named event kind panic after it is recorded
	PanicOn string
}

// NewRecordingNotifier creates an empty recording notifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) record(e Event) {
	n.mu.Lock()
	n.events = append(n.events, e)
	panicOn := n.PanicOn
	n.mu.Unlock()
	if panicOn == e.Kind {
		panic("notifier failure: " + e.Kind)
	}
}

// Events returns a copy of the recorded events.
func (n *RecordingNotifier) Events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

// Filter returns the events of one kind for one game. An empty game matches all.
func (n *RecordingNotifier) Filter(kind, game string) []Event {
	var out []Event
	for _, e := range n.Events() {
		if e.Kind == kind && (game == "" || e.Game == game) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events of kind were recorded for game.
func (n *RecordingNotifier) Count(kind, game string) int {
	return len(n.Filter(kind, game))
}

// Kinds returns the kinds of every recorded event for game, in order.
func (n *RecordingNotifier) Kinds(game string) []string {
	var out []string
	for _, e := range n.Events() {
		if game == "" || e.Game == game {
			out = append(out, e.Kind)
		}
	}
	return out
}

// Percents returns the percent of every FinishedFileUpload event for game.
func (n *RecordingNotifier) Percents(game string) []int {
	var out []int
	for _, e := range n.Filter("FinishedFileUpload", game) {
		out = append(out, e.Percent)
	}
	return out
}

func (n *RecordingNotifier) GameAddedToUploadQueue(game string) {
	n.record(Event{Kind: "GameAddedToUploadQueue", Game: game})
}

func (n *RecordingNotifier) StartingGameUpload(game string) {
	n.record(Event{Kind: "StartingGameUpload", Game: game})
}

func (n *RecordingNotifier) FinishedGameUpload(game string, elapsed time.Duration) {
	n.record(Event{Kind: "FinishedGameUpload", Game: game})
}

func (n *RecordingNotifier) GameUploadError(game string, err error, message string) {
	n.record(Event{Kind: "GameUploadError", Game: game, Err: err, Message: message})
}

func (n *RecordingNotifier) ReportTotalFilesToTransfer(game string, count int) {
	n.record(Event{Kind: "ReportTotalFilesToTransfer", Game: game, Count: count})
}

func (n *RecordingNotifier) ReportTotalBytesToUpload(game string, bytes int64) {
	n.record(Event{Kind: "ReportTotalBytesToUpload", Game: game, Bytes: bytes})
}

func (n *RecordingNotifier) ExtractFileToDisk(game, file string) {
	n.record(Event{Kind: "ExtractFileToDisk", Game: game, File: file})
}

func (n *RecordingNotifier) AddingToUploadQueue(game, file string) {
	n.record(Event{Kind: "AddingToUploadQueue", Game: game, File: file})
}

func (n *RecordingNotifier) CreateFolderStructure(game string) {
	n.record(Event{Kind: "CreateFolderStructure", Game: game})
}

func (n *RecordingNotifier) FinishedCreatingFolderStructure(game string) {
	n.record(Event{Kind: "FinishedCreatingFolderStructure", Game: game})
}

func (n *RecordingNotifier) SkippedCreatingFolderStructure(game string) {
	n.record(Event{Kind: "SkippedCreatingFolderStructure", Game: game})
}

func (n *RecordingNotifier) CheckingForUploadedFiles(game string) {
	n.record(Event{Kind: "CheckingForUploadedFiles", Game: game})
}

func (n *RecordingNotifier) CheckingForUploadedFile(game, file string) {
	n.record(Event{Kind: "CheckingForUploadedFile", Game: game, File: file})
}

func (n *RecordingNotifier) FileAlreadyExists(game, file string) {
	n.record(Event{Kind: "FileAlreadyExists", Game: game, File: file})
}

func (n *RecordingNotifier) WaitingForUploadsToComplete(game string) {
	n.record(Event{Kind: "WaitingForUploadsToComplete", Game: game})
}

func (n *RecordingNotifier) StartingFileUpload(game, file string) {
	n.record(Event{Kind: "StartingFileUpload", Game: game, File: file})
}

func (n *RecordingNotifier) FinishedFileUpload(game, file string, percentComplete int) {
	n.record(Event{Kind: "FinishedFileUpload", Game: game, File: file, Percent: percentComplete})
}

func (n *RecordingNotifier) FileUploadFailed(game, file string, err error) {
	n.record(Event{Kind: "FileUploadFailed", Game: game, File: file, Err: err})
}

// Compile-time check that RecordingNotifier implements ports.ProgressNotifier.
var _ ports.ProgressNotifier = (*RecordingNotifier)(nil)
