// Package mocks provides mock implementations for testing.
package mocks

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// MockFileSystem implements ports.FileSystem for testing.
// It is safe for concurrent use.
type MockFileSystem struct {
	mu sync.Mutex
	// Files maps paths to file contents
	Files map[string][]byte
	// Dirs records directories created with MkdirAll
	Dirs map[string]bool
	// Errors maps paths to errors (for simulating failures)
	Errors map[string]error
	// Removed records every path passed to Remove or RemoveAll
	Removed []string
}

// NewMockFileSystem creates a new mock filesystem.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		Files:  make(map[string][]byte),
		Dirs:   make(map[string]bool),
		Errors: make(map[string]error),
	}
}

// Stat returns file info for the named file.
func (m *MockFileSystem) Stat(name string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errors[name]; ok {
		return nil, err
	}
	if content, ok := m.Files[name]; ok {
		return &mockFileInfo{name: filepath.Base(name), size: int64(len(content))}, nil
	}
	if m.Dirs[name] {
		return &mockFileInfo{name: filepath.Base(name), isDir: true, mode: os.ModeDir}, nil
	}
	return nil, os.ErrNotExist
}

// MkdirAll creates a directory along with any necessary parents.
func (m *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errors[path]; ok {
		return err
	}
	m.Dirs[path] = true
	return nil
}

// WriteFile writes data to the named file, creating it if necessary.
func (m *MockFileSystem) WriteFile(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errors[name]; ok {
		return err
	}
	m.Files[name] = data
	return nil
}

// ReadFile reads the named file and returns the contents.
func (m *MockFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if content, ok := m.Files[name]; ok {
		return content, nil
	}
	return nil, os.ErrNotExist
}

// Exists reports whether the named file is present.
func (m *MockFileSystem) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Files[name]
	return ok
}

// FileCount returns the number of files currently stored.
func (m *MockFileSystem) FileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Files)
}

// Remove removes the named file or empty directory.
func (m *MockFileSystem) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errors[name]; ok {
		return err
	}
	m.Removed = append(m.Removed, name)
	if _, ok := m.Files[name]; !ok && !m.Dirs[name] {
		return os.ErrNotExist
	}
	delete(m.Files, name)
	delete(m.Dirs, name)
	return nil
}

// RemoveAll removes path and any children it contains.
func (m *MockFileSystem) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errors[path]; ok {
		return err
	}
	m.Removed = append(m.Removed, path)
	for k := range m.Files {
		if k == path || strings.HasPrefix(k, path+string(filepath.Separator)) {
			delete(m.Files, k)
		}
	}
	for k := range m.Dirs {
		if k == path || strings.HasPrefix(k, path+string(filepath.Separator)) {
			delete(m.Dirs, k)
		}
	}
	return nil
}

// Open opens the named file for reading. The returned file is seekable.
func (m *MockFileSystem) Open(name string) (fs.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errors[name]; ok {
		return nil, err
	}
	content, ok := m.Files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &mockFile{Reader: bytes.NewReader(content), name: name, size: int64(len(content))}, nil
}

// mockFileInfo implements os.FileInfo for testing.
type mockFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	isDir   bool
}

func (fi *mockFileInfo) Name() string       { return fi.name }
func (fi *mockFileInfo) Size() int64        { return fi.size }
func (fi *mockFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *mockFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *mockFileInfo) IsDir() bool        { return fi.isDir }
func (fi *mockFileInfo) Sys() interface{}   { return nil }

// mockFile implements fs.File and io.Seeker for testing.
type mockFile struct {
	*bytes.Reader
	name string
	size int64
}

func (f *mockFile) Stat() (fs.FileInfo, error) {
	return &mockFileInfo{name: filepath.Base(f.name), size: f.size}, nil
}

func (f *mockFile) Close() error { return nil }

// Compile-time check that MockFileSystem implements ports.FileSystem.
var _ ports.FileSystem = (*MockFileSystem)(nil)
