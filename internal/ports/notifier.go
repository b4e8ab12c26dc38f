package ports

import "time"

// ProgressNotifier receives every event of the upload engine.
// Adapters log the events, render them in the terminal UI, or drop them.
// Implementations must be safe for concurrent use: workers call them from
// their own goroutines.
type ProgressNotifier interface {
	GameAddedToUploadQueue(game string)
	StartingGameUpload(game string)
	FinishedGameUpload(game string, elapsed time.Duration)
	GameUploadError(game string, err error, message string)

	ReportTotalFilesToTransfer(game string, count int)
	ReportTotalBytesToUpload(game string, bytes int64)

	ExtractFileToDisk(game, file string)
	AddingToUploadQueue(game, file string)

	CreateFolderStructure(game string)
	FinishedCreatingFolderStructure(game string)
	SkippedCreatingFolderStructure(game string)

	CheckingForUploadedFiles(game string)
	CheckingForUploadedFile(game, file string)
	FileAlreadyExists(game, file string)

	WaitingForUploadsToComplete(game string)
	StartingFileUpload(game, file string)
	FinishedFileUpload(game, file string, percentComplete int)
	FileUploadFailed(game, file string, err error)
}
