package ports

import "io"

// ArchiveReader abstracts opening game archives for testability.
// Production code uses ziparchive.Reader; tests use MockArchiveReader.
type ArchiveReader interface {
	// Open opens the archive at path. Fails on a missing or corrupt archive.
	Open(path string) (Archive, error)
}

// Archive is an open archive handle. Entries returned by Files are only
// valid until Close is called.
type Archive interface {
	// Files returns the file entries sorted by name. Directories are excluded.
	Files() []ArchiveEntry

	// Directories returns every directory the archive declares or implies,
	// sorted so that parents come before their children.
	Directories() []string

	// Close releases the archive.
	Close() error
}

// ArchiveEntry is a read-only view of one file inside an archive.
type ArchiveEntry interface {
	// Name is the slash separated path inside the archive. It is used as the
	// remote relative path and as the sort key.
	Name() string

	// UncompressedSize is the size of the entry content in bytes.
	UncompressedSize() int64

	// Open returns a stream over the uncompressed content.
	Open() (io.ReadCloser, error)

	// ExtractTo writes the entry below dir, preserving its relative path,
	// and returns the path of the written file.
	ExtractTo(dir string) (string, error)
}
