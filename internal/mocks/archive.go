package mocks

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// MockArchiveReader implements ports.ArchiveReader for testing.
type MockArchiveReader struct {
	mu sync.Mutex
	// Archives maps archive paths to archives
	Archives map[string]*MockArchive
	// Errors maps archive paths to errors returned by Open
	Errors map[string]error
	// OpenCalls records every opened path
	OpenCalls []string
}

// NewMockArchiveReader creates a new mock archive reader.
func NewMockArchiveReader() *MockArchiveReader {
	return &MockArchiveReader{
		Archives: make(map[string]*MockArchive),
		Errors:   make(map[string]error),
	}
}

// Add registers an archive under archivePath.
func (m *MockArchiveReader) Add(archivePath string, archive *MockArchive) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Archives[archivePath] = archive
}

// Open returns the archive registered for archivePath.
func (m *MockArchiveReader) Open(archivePath string) (ports.Archive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenCalls = append(m.OpenCalls, archivePath)
	if err, ok := m.Errors[archivePath]; ok {
		return nil, err
	}
	archive, ok := m.Archives[archivePath]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", archivePath, os.ErrNotExist)
	}
	return archive, nil
}

// MockArchive implements ports.Archive for testing.
type MockArchive struct {
	Entries []*MockEntry
	// Dirs is returned by Directories; nil derives parents from Entries
	Dirs []string
	// Closed counts Close calls
	Closed int
	// PanicOnFiles makes Files panic, simulating a broken reader
	PanicOnFiles bool
}

// NewMockArchive creates an archive holding entries.
func NewMockArchive(entries ...*MockEntry) *MockArchive {
	return &MockArchive{Entries: entries}
}

// Files returns the entries in the order they were added.
func (a *MockArchive) Files() []ports.ArchiveEntry {
	if a.PanicOnFiles {
		panic("archive is corrupt")
	}
	out := make([]ports.ArchiveEntry, len(a.Entries))
	for i, e := range a.Entries {
		out[i] = e
	}
	return out
}

// Directories returns Dirs, or the parents of every entry.
func (a *MockArchive) Directories() []string {
	if a.Dirs != nil {
		return a.Dirs
	}
	seen := make(map[string]bool)
	var dirs []string
	for _, e := range a.Entries {
		var parents []string
		for dir := path.Dir(e.EntryName); dir != "." && dir != "/"; dir = path.Dir(dir) {
			parents = append([]string{dir}, parents...)
		}
		for _, dir := range parents {
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

// Close marks the archive closed.
func (a *MockArchive) Close() error {
	a.Closed++
	return nil
}

// MockEntry implements ports.ArchiveEntry for testing.
type MockEntry struct {
	EntryName string
	Data      []byte
	// FS receives extracted files; nil writes to the real filesystem
	FS *MockFileSystem
	// OpenErr is returned by Open and ExtractTo
	OpenErr error
}

// NewMockEntry creates an entry of size bytes filled with a repeating pattern.
func NewMockEntry(name string, size int) *MockEntry {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	return &MockEntry{EntryName: name, Data: data}
}

// Name returns the entry path.
func (e *MockEntry) Name() string { return e.EntryName }

// UncompressedSize returns the length of Data.
func (e *MockEntry) UncompressedSize() int64 { return int64(len(e.Data)) }

// Open returns a reader over Data.
func (e *MockEntry) Open() (io.ReadCloser, error) {
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	return io.NopCloser(bytes.NewReader(e.Data)), nil
}

// ExtractTo writes Data below dir.
func (e *MockEntry) ExtractTo(dir string) (string, error) {
	if e.OpenErr != nil {
		return "", e.OpenErr
	}
	target := filepath.Join(dir, filepath.FromSlash(e.EntryName))
	if e.FS != nil {
		return target, e.FS.WriteFile(target, e.Data)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(target, e.Data, 0o644); err != nil {
		return "", fmt.Errorf("extracting %s: %w", e.EntryName, err)
	}
	return target, nil
}

// Compile-time checks.
var (
	_ ports.ArchiveReader = (*MockArchiveReader)(nil)
	_ ports.Archive       = (*MockArchive)(nil)
	_ ports.ArchiveEntry  = (*MockEntry)(nil)
)
