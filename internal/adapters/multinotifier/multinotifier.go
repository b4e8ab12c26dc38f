// Package multinotifier fans progress events out to several notifiers.
package multinotifier

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// Notifier forwards every event to each sink in order. A sink that panics is
// logged and skipped; the other sinks and the upload carry on.
type Notifier struct {
	sinks []ports.ProgressNotifier
	log   zerolog.Logger
}

// New creates a fan-out notifier. Nil sinks are ignored.
func New(log zerolog.Logger, sinks ...ports.ProgressNotifier) *Notifier {
	n := &Notifier{log: log}
	for _, s := range sinks {
		if s != nil {
			n.sinks = append(n.sinks, s)
		}
	}
	return n
}

func (n *Notifier) each(event string, fn func(ports.ProgressNotifier)) {
	for i, s := range n.sinks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					n.log.Error().Str("event", event).Int("sink", i).Interface("panic", r).Msg("Notifier panicked")
				}
			}()
			fn(s)
		}()
	}
}

func (n *Notifier) GameAddedToUploadQueue(game string) {
	n.each("GameAddedToUploadQueue", func(s ports.ProgressNotifier) { s.GameAddedToUploadQueue(game) })
}

func (n *Notifier) StartingGameUpload(game string) {
	n.each("StartingGameUpload", func(s ports.ProgressNotifier) { s.StartingGameUpload(game) })
}

func (n *Notifier) FinishedGameUpload(game string, elapsed time.Duration) {
	n.each("FinishedGameUpload", func(s ports.ProgressNotifier) { s.FinishedGameUpload(game, elapsed) })
}

func (n *Notifier) GameUploadError(game string, err error, message string) {
	n.each("GameUploadError", func(s ports.ProgressNotifier) { s.GameUploadError(game, err, message) })
}

func (n *Notifier) ReportTotalFilesToTransfer(game string, count int) {
	n.each("ReportTotalFilesToTransfer", func(s ports.ProgressNotifier) { s.ReportTotalFilesToTransfer(game, count) })
}

func (n *Notifier) ReportTotalBytesToUpload(game string, bytes int64) {
	n.each("ReportTotalBytesToUpload", func(s ports.ProgressNotifier) { s.ReportTotalBytesToUpload(game, bytes) })
}

func (n *Notifier) ExtractFileToDisk(game, file string) {
	n.each("ExtractFileToDisk", func(s ports.ProgressNotifier) { s.ExtractFileToDisk(game, file) })
}

func (n *Notifier) AddingToUploadQueue(game, file string) {
	n.each("AddingToUploadQueue", func(s ports.ProgressNotifier) { s.AddingToUploadQueue(game, file) })
}

func (n *Notifier) CreateFolderStructure(game string) {
	n.each("CreateFolderStructure", func(s ports.ProgressNotifier) { s.CreateFolderStructure(game) })
}

func (n *Notifier) FinishedCreatingFolderStructure(game string) {
	n.each("FinishedCreatingFolderStructure", func(s ports.ProgressNotifier) { s.FinishedCreatingFolderStructure(game) })
}

func (n *Notifier) SkippedCreatingFolderStructure(game string) {
	n.each("SkippedCreatingFolderStructure", func(s ports.ProgressNotifier) { s.SkippedCreatingFolderStructure(game) })
}

func (n *Notifier) CheckingForUploadedFiles(game string) {
	n.each("CheckingForUploadedFiles", func(s ports.ProgressNotifier) { s.CheckingForUploadedFiles(game) })
}

func (n *Notifier) CheckingForUploadedFile(game, file string) {
	n.each("CheckingForUploadedFile", func(s ports.ProgressNotifier) { s.CheckingForUploadedFile(game, file) })
}

func (n *Notifier) FileAlreadyExists(game, file string) {
	n.each("FileAlreadyExists", func(s ports.ProgressNotifier) { s.FileAlreadyExists(game, file) })
}

func (n *Notifier) WaitingForUploadsToComplete(game string) {
	n.each("WaitingForUploadsToComplete", func(s ports.ProgressNotifier) { s.WaitingForUploadsToComplete(game) })
}

func (n *Notifier) StartingFileUpload(game, file string) {
	n.each("StartingFileUpload", func(s ports.ProgressNotifier) { s.StartingFileUpload(game, file) })
}

func (n *Notifier) FinishedFileUpload(game, file string, percentComplete int) {
	n.each("FinishedFileUpload", func(s ports.ProgressNotifier) { s.FinishedFileUpload(game, file, percentComplete) })
}

func (n *Notifier) FileUploadFailed(game, file string, err error) {
	n.each("FileUploadFailed", func(s ports.ProgressNotifier) { s.FileUploadFailed(game, file, err) })
}

// Nop discards every event.
type Nop struct{}

func (Nop) GameAddedToUploadQueue(string) {}
func (Nop) StartingGameUpload(string) {}
func (Nop) FinishedGameUpload(string, time.Duration) {}
func (Nop) GameUploadError(string, error, string) {}
func (Nop) ReportTotalFilesToTransfer(string, int) {}
func (Nop) ReportTotalBytesToUpload(string, int64) {}
func (Nop) ExtractFileToDisk(string, string) {}
func (Nop) AddingToUploadQueue(string, string) {}
func (Nop) CreateFolderStructure(string) {}
func (Nop) FinishedCreatingFolderStructure(string) {}
func (Nop) SkippedCreatingFolderStructure(string) {}
func (Nop) CheckingForUploadedFiles(string) {}
func (Nop) CheckingForUploadedFile(string, string) {}
func (Nop) FileAlreadyExists(string, string) {}
func (Nop) WaitingForUploadsToComplete(string) {}
func (Nop) StartingFileUpload(string, string) {}
func (Nop) FinishedFileUpload(string, string, int) {}
func (Nop) FileUploadFailed(string, string, error) {}

var (
	_ ports.ProgressNotifier = (*Notifier)(nil)
	_ ports.ProgressNotifier = Nop{}
)
