package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// TransferRequest is one file queued for upload. It is consumed by exactly
// one transfer worker, which calls Release once the file is handled.
type TransferRequest interface {
	// Path is the remote path relative to the game root.
	Path() string

	// Length is the number of bytes that will be stored.
	Length() int64

	// Open returns a fresh stream over the content. The stream is an
	// io.Seeker so repositories can rewind it before a retry.
	Open() (io.ReadCloser, error)

	// Bytes returns the whole content.
	Bytes() ([]byte, error)

	// Release frees the resources backing the request.
	Release() error
}

// memoryRequest holds the entry content in memory.
type memoryRequest struct {
	path string
	data []byte
}

func newMemoryRequest(path string, data []byte) *memoryRequest {
	return &memoryRequest{path: path, data: data}
}

func (r *memoryRequest) Path() string  { return r.path }
func (r *memoryRequest) Length() int64 { return int64(len(r.data)) }

func (r *memoryRequest) Open() (io.ReadCloser, error) {
	if r.data == nil {
		return nil, fmt.Errorf("request %s already released", r.path)
	}
	return readSeekNopCloser{bytes.NewReader(r.data)}, nil
}

func (r *memoryRequest) Bytes() ([]byte, error) {
	if r.data == nil {
		return nil, fmt.Errorf("request %s already released", r.path)
	}
	return r.data, nil
}

func (r *memoryRequest) Release() error {
	r.data = nil
	return nil
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// stagedRequest refers to an entry already extracted to the staging directory.
// Release deletes the temp file.
type stagedRequest struct {
	path     string
	tempPath string
	length   int64
	fs       ports.FileSystem
}

func newStagedRequest(fsys ports.FileSystem, path, tempPath string) (*stagedRequest, error) {
	info, err := fsys.Stat(tempPath)
	if err != nil {
		return nil, fmt.Errorf("stat staged file %s: %w", tempPath, err)
	}
	return &stagedRequest{path: path, tempPath: tempPath, length: info.Size(), fs: fsys}, nil
}

func (r *stagedRequest) Path() string  { return r.path }
func (r *stagedRequest) Length() int64 { return r.length }

func (r *stagedRequest) Open() (io.ReadCloser, error) {
	f, err := r.fs.Open(r.tempPath)
	if err != nil {
		return nil, err
	}
	rc, ok := f.(io.ReadCloser)
	if !ok {
		_ = f.Close()
		return nil, fmt.Errorf("staged file %s is not readable", r.tempPath)
	}
	return rc, nil
}

func (r *stagedRequest) Bytes() ([]byte, error) {
	rc, err := r.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func (r *stagedRequest) Release() error {
	if err := r.fs.Remove(r.tempPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing staged file %s: %w", r.tempPath, err)
	}
	return nil
}

// completion is what a transfer worker reports once a request is done.
type completion struct {
	path   string
	length int64
}
