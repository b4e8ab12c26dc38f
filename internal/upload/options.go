package upload

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// InMemoryThreshold is the largest entry held in memory while queued.
	// Larger entries are extracted to the staging directory first.
	InMemoryThreshold int64 = 14572800

	// SkipCheckThreshold is the request size above which a transfer worker
	// checks the remote side before storing.
	SkipCheckThreshold int64 = 50000

	// MaxOutstandingRequests is the queue depth at which the producer waits.
	MaxOutstandingRequests = 10

	// MaxQueuedBytes is the queued byte volume above which the producer waits.
	MaxQueuedBytes int64 = 314572800
)

// Options tunes the pipeline. DefaultOptions returns the production values.
type Options struct {
	TransferWorkers        int
	InMemoryThreshold      int64
	SkipCheckThreshold     int64
	MaxOutstandingRequests int
	MaxQueuedBytes         int64

	// OutstandingPoll and MemoryPoll are the sleep intervals of the two gates.
	OutstandingPoll time.Duration
	MemoryPoll      time.Duration
	// DrainPoll is the interval used while waiting for a queue to empty.
	DrainPoll time.Duration

	// TransferWait, ProgressWait and DirectoryWait bound a single dequeue.
	TransferWait  time.Duration
	ProgressWait  time.Duration
	DirectoryWait time.Duration

	// StopTimeout bounds how long Stop waits for a worker's current item.
	StopTimeout time.Duration

	// TempDir is the parent of the per-game staging directories.
	TempDir string

	// Strategy finds the resume point of each archive.
	Strategy ResumeStrategy
}

// DefaultOptions returns the settings the uploader runs with in production.
func DefaultOptions() Options {
	return Options{
		TransferWorkers:        2,
		InMemoryThreshold:      InMemoryThreshold,
		SkipCheckThreshold:     SkipCheckThreshold,
		MaxOutstandingRequests: MaxOutstandingRequests,
		MaxQueuedBytes:         MaxQueuedBytes,
		OutstandingPoll:        500 * time.Millisecond,
		MemoryPoll:             time.Second,
		DrainPoll:              time.Second,
		TransferWait:           time.Second,
		ProgressWait:           500 * time.Millisecond,
		DirectoryWait:          500 * time.Millisecond,
		StopTimeout:            2 * time.Second,
		TempDir:                filepath.Join(os.TempDir(), "xboxftp"),
		Strategy:               BinarySearch{},
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TransferWorkers <= 0 {
		o.TransferWorkers = d.TransferWorkers
	}
	if o.InMemoryThreshold <= 0 {
		o.InMemoryThreshold = d.InMemoryThreshold
	}
	if o.SkipCheckThreshold <= 0 {
		o.SkipCheckThreshold = d.SkipCheckThreshold
	}
	if o.MaxOutstandingRequests <= 0 {
		o.MaxOutstandingRequests = d.MaxOutstandingRequests
	}
	if o.MaxQueuedBytes <= 0 {
		o.MaxQueuedBytes = d.MaxQueuedBytes
	}
	if o.OutstandingPoll <= 0 {
		o.OutstandingPoll = d.OutstandingPoll
	}
	if o.MemoryPoll <= 0 {
		o.MemoryPoll = d.MemoryPoll
	}
	if o.DrainPoll <= 0 {
		o.DrainPoll = d.DrainPoll
	}
	if o.TransferWait <= 0 {
		o.TransferWait = d.TransferWait
	}
	if o.ProgressWait <= 0 {
		o.ProgressWait = d.ProgressWait
	}
	if o.DirectoryWait <= 0 {
		o.DirectoryWait = d.DirectoryWait
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = d.StopTimeout
	}
	if o.TempDir == "" {
		o.TempDir = d.TempDir
	}
	if o.Strategy == nil {
		o.Strategy = d.Strategy
	}
	return o
}
