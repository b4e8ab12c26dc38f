package upload

import (
	"context"
	"fmt"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// Resume strategy names accepted by NewResumeStrategy.
const (
	StrategyBinary     = "binary"
	StrategySequential = "sequential"
)

// ResumeReport describes the work left for one archive.
type ResumeReport struct {
	// RemainingFiles is the suffix of the sorted entries not confirmed present.
	RemainingFiles []ports.ArchiveEntry
	// SizeUploaded is the summed size of the entries confirmed present.
	SizeUploaded int64
}

// ResumeStrategy finds the first entry of a sorted list that still has to be
// transferred. Both implementations return identical reports when remote
// presence is a prefix of the list.
type ResumeStrategy interface {
	Resume(ctx context.Context, entries []ports.ArchiveEntry, notifier ports.ProgressNotifier,
		game string, repo ports.GameRepository) (ResumeReport, error)
}

// NewResumeStrategy returns the strategy registered under name.
// An empty name selects the binary search.
func NewResumeStrategy(name string) (ResumeStrategy, error) {
	switch name {
	case "", StrategyBinary:
		return BinarySearch{}, nil
	case StrategySequential:
		return Sequential{}, nil
	default:
		return nil, fmt.Errorf("unknown resume strategy %q", name)
	}
}

// Sequential probes entries in order and stops at the first one missing.
// It needs one round trip per present entry plus one.
type Sequential struct{}

func (Sequential) Resume(ctx context.Context, entries []ports.ArchiveEntry, notifier ports.ProgressNotifier,
	game string, repo ports.GameRepository) (ResumeReport, error) {
	for i, entry := range entries {
		present, err := probe(ctx, entry, notifier, game, repo)
		if err != nil {
			return ResumeReport{}, err
		}
		if !present {
			return newResumeReport(entries, i), nil
		}
	}
	return newResumeReport(entries, len(entries)), nil
}

// BinarySearch finds the last present entry in O(log N) round trips.
//
// It assumes presence is a prefix of the sorted list, which holds when earlier
// runs uploaded in name order and nothing was deleted remotely afterwards.
// Concurrent transfer workers do not guarantee that order, so a hole in the
// middle of the remote tree can be skipped where Sequential would find it.
type BinarySearch struct{}

func (BinarySearch) Resume(ctx context.Context, entries []ports.ArchiveEntry, notifier ports.ProgressNotifier,
	game string, repo ports.GameRepository) (ResumeReport, error) {
	if len(entries) == 0 {
		return ResumeReport{}, nil
	}

	present, err := probe(ctx, entries[0], notifier, game, repo)
	if err != nil {
		return ResumeReport{}, err
	}
	if !present {
		return newResumeReport(entries, 0), nil
	}

	// entries[0] is known present, so the search covers the rest.
	resumePosition := 0
	lowerBound, upperBound := 1, len(entries)-1
	for lowerBound <= upperBound {
		mid := lowerBound + (upperBound-lowerBound)/2
		present, err := probe(ctx, entries[mid], notifier, game, repo)
		if err != nil {
			return ResumeReport{}, err
		}
		if present {
			resumePosition = mid
			lowerBound = mid + 1
		} else {
			upperBound = mid - 1
		}
	}

	return newResumeReport(entries, resumePosition+1), nil
}

func probe(ctx context.Context, entry ports.ArchiveEntry, notifier ports.ProgressNotifier,
	game string, repo ports.GameRepository) (bool, error) {
	notifier.CheckingForUploadedFile(game, entry.Name())

	present, err := repo.Exists(ctx, game, entry.Name(), entry.UncompressedSize())
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", entry.Name(), err)
	}
	if present {
		notifier.FileAlreadyExists(game, entry.Name())
	}
	return present, nil
}

// newResumeReport treats entries[:uploaded] as present.
func newResumeReport(entries []ports.ArchiveEntry, uploaded int) ResumeReport {
	return ResumeReport{
		RemainingFiles: entries[uploaded:],
		SizeUploaded:   totalSize(entries[:uploaded]),
	}
}

func totalSize(entries []ports.ArchiveEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.UncompressedSize()
	}
	return total
}
