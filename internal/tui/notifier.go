package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// eventKind identifies the notifier call an eventMsg came from.
type eventKind int

const (
	gameQueued eventKind = iota
	gameStarted
	gameFinished
	gameFailed
	filesToTransfer
	bytesToUpload
	extracting
	queueingFile
	creatingFolders
	foldersCreated
	foldersSkipped
	checkingResume
	checkingFile
	fileExists
	draining
	fileStarted
	fileFinished
	fileFailed
)

// eventMsg carries one progress event into the bubbletea loop.
type eventMsg struct {
	kind    eventKind
	game    string
	file    string
	percent int
	count   int
	bytes   int64
	elapsed time.Duration
	err     error
	message string
}

// Notifier turns progress events into tea messages. It is safe for
// concurrent use since tea.Program.Send is.
type Notifier struct {
	send func(tea.Msg)
}

// NewNotifier sends events to p.
func NewNotifier(p *tea.Program) *Notifier {
	return &Notifier{send: p.Send}
}

func (n *Notifier) GameAddedToUploadQueue(game string) {
	n.send(eventMsg{kind: gameQueued, game: game})
}

func (n *Notifier) StartingGameUpload(game string) {
	n.send(eventMsg{kind: gameStarted, game: game})
}

func (n *Notifier) FinishedGameUpload(game string, elapsed time.Duration) {
	n.send(eventMsg{kind: gameFinished, game: game, elapsed: elapsed})
}

func (n *Notifier) GameUploadError(game string, err error, message string) {
	n.send(eventMsg{kind: gameFailed, game: game, err: err, message: message})
}

func (n *Notifier) ReportTotalFilesToTransfer(game string, count int) {
	n.send(eventMsg{kind: filesToTransfer, game: game, count: count})
}

func (n *Notifier) ReportTotalBytesToUpload(game string, bytes int64) {
	n.send(eventMsg{kind: bytesToUpload, game: game, bytes: bytes})
}

func (n *Notifier) ExtractFileToDisk(game, file string) {
	n.send(eventMsg{kind: extracting, game: game, file: file})
}

func (n *Notifier) AddingToUploadQueue(game, file string) {
	n.send(eventMsg{kind: queueingFile, game: game, file: file})
}

func (n *Notifier) CreateFolderStructure(game string) {
	n.send(eventMsg{kind: creatingFolders, game: game})
}

func (n *Notifier) FinishedCreatingFolderStructure(game string) {
	n.send(eventMsg{kind: foldersCreated, game: game})
}

func (n *Notifier) SkippedCreatingFolderStructure(game string) {
	n.send(eventMsg{kind: foldersSkipped, game: game})
}

func (n *Notifier) CheckingForUploadedFiles(game string) {
	n.send(eventMsg{kind: checkingResume, game: game})
}

func (n *Notifier) CheckingForUploadedFile(game, file string) {
	n.send(eventMsg{kind: checkingFile, game: game, file: file})
}

func (n *Notifier) FileAlreadyExists(game, file string) {
	n.send(eventMsg{kind: fileExists, game: game, file: file})
}

func (n *Notifier) WaitingForUploadsToComplete(game string) {
	n.send(eventMsg{kind: draining, game: game})
}

func (n *Notifier) StartingFileUpload(game, file string) {
	n.send(eventMsg{kind: fileStarted, game: game, file: file})
}

func (n *Notifier) FinishedFileUpload(game, file string, percentComplete int) {
	n.send(eventMsg{kind: fileFinished, game: game, file: file, percent: percentComplete})
}

func (n *Notifier) FileUploadFailed(game, file string, err error) {
	n.send(eventMsg{kind: fileFailed, game: game, file: file, err: err})
}

// Compile-time check that Notifier implements ports.ProgressNotifier.
var _ ports.ProgressNotifier = (*Notifier)(nil)
