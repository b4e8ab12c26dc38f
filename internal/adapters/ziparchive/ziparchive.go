// Package ziparchive provides an archive reader adapter using the archive/zip package.
package ziparchive

import (
	"archive/zip"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// MaxDecompressSize is the maximum allowed uncompressed entry size (10GB).
// This prevents decompression bomb attacks (G110).
const MaxDecompressSize = 10 * 1024 * 1024 * 1024 // 10GB

// Reader implements ports.ArchiveReader for zip files.
type Reader struct{}

// New creates a new zip archive reader.
func New() *Reader {
	return &Reader{}
}

// Open opens the zip file at archivePath and indexes its entries.
// Archives containing symlinks or unsafe paths are rejected.
func (r *Reader) Open(archivePath string) (ports.Archive, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening zip %s: %w", archivePath, err)
	}

	a := &Archive{reader: zr}
	dirs := make(map[string]bool)

	for _, f := range zr.File {
		// SECURITY: Block symlinks to prevent symlink attacks
		if f.Mode()&os.ModeSymlink != 0 {
			_ = zr.Close()
			return nil, fmt.Errorf("symlinks not supported in game archives: %s", f.Name)
		}

		name, err := cleanName(f.Name)
		if err != nil {
			_ = zr.Close()
			return nil, err
		}
		if name == "" {
			continue
		}

		if f.FileInfo().IsDir() {
			dirs[name] = true
		} else {
			a.files = append(a.files, &Entry{file: f, name: name})
		}
		for dir := path.Dir(name); dir != "."; dir = path.Dir(dir) {
			dirs[dir] = true
		}
	}

	sort.Slice(a.files, func(i, j int) bool { return a.files[i].name < a.files[j].name })
	for dir := range dirs {
		a.dirs = append(a.dirs, dir)
	}
	// A parent is a prefix of its children, so it always sorts first.
	sort.Strings(a.dirs)

	return a, nil
}

// cleanName normalizes an entry name to a relative slash path.
// SECURITY: Rejects absolute names and names escaping the game root (ZipSlip).
func cleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("invalid file path (absolute): %s", name)
	}
	cleaned := path.Clean(name)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid file path (path traversal detected): %s", name)
	}
	return cleaned, nil
}

// Archive implements ports.Archive over an open zip file.
type Archive struct {
	reader *zip.ReadCloser
	files  []*Entry
	dirs   []string
}

// Files returns the file entries sorted by name.
func (a *Archive) Files() []ports.ArchiveEntry {
	out := make([]ports.ArchiveEntry, len(a.files))
	for i, f := range a.files {
		out[i] = f
	}
	return out
}

// Directories returns declared and implied directories, parents first.
func (a *Archive) Directories() []string {
	return a.dirs
}

// Close closes the underlying zip file.
func (a *Archive) Close() error {
	return a.reader.Close()
}

// Entry implements ports.ArchiveEntry for one zip file entry.
type Entry struct {
	file *zip.File
	name string
}

// Name returns the cleaned slash path of the entry.
func (e *Entry) Name() string {
	return e.name
}

// UncompressedSize returns the declared uncompressed size.
func (e *Entry) UncompressedSize() int64 {
	// Safe conversion: check for overflow before uint64 -> int64
	if e.file.UncompressedSize64 > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(e.file.UncompressedSize64)
}

// Open returns a stream over the uncompressed content.
func (e *Entry) Open() (io.ReadCloser, error) {
	if e.file.UncompressedSize64 > MaxDecompressSize {
		return nil, fmt.Errorf("file too large: %d bytes exceeds limit of %d bytes", e.file.UncompressedSize64, MaxDecompressSize)
	}
	return e.file.Open()
}

// ExtractTo writes the entry below dir and returns the written path.
func (e *Entry) ExtractTo(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving destination path: %w", err)
	}
	absDir = filepath.Clean(absDir)

	target := filepath.Join(absDir, filepath.FromSlash(e.name))
	// SECURITY: Check for ZipSlip vulnerability
	if !isWithinDir(absDir, target) {
		return "", fmt.Errorf("invalid file path (path traversal detected): %s", e.name)
	}

	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return "", fmt.Errorf("creating parent directory for %s: %w", target, err)
	}
	if err := extractFile(e.file, target); err != nil {
		return "", fmt.Errorf("extracting %s: %w", e.name, err)
	}
	return target, nil
}

// extractFile extracts a single file from the zip.
func extractFile(f *zip.File, destPath string) error {
	// SECURITY: Limit decompression size to prevent zip bombs (G110)
	declaredSize := f.UncompressedSize64
	if declaredSize > MaxDecompressSize {
		return fmt.Errorf("file too large: %d bytes exceeds limit of %d bytes", declaredSize, MaxDecompressSize)
	}

	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = outFile.Close() }()

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	// Add 1 byte to detect if actual size exceeds declared size
	limitedReader := io.LimitReader(rc, int64(declaredSize)+1)
	written, err := io.Copy(outFile, limitedReader)
	if err != nil {
		return err
	}

	// Check if more data was available than declared (corrupted/malicious zip)
	if written > int64(declaredSize) {
		return fmt.Errorf("decompressed size exceeds declared size")
	}

	return outFile.Close()
}

// isWithinDir checks if the target path is within the base directory.
func isWithinDir(absBaseDir, targetPath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absTarget = filepath.Clean(absTarget)

	return strings.HasPrefix(absTarget, absBaseDir+string(filepath.Separator)) ||
		absTarget == absBaseDir
}

// Compile-time checks.
var (
	_ ports.ArchiveReader = (*Reader)(nil)
	_ ports.Archive       = (*Archive)(nil)
	_ ports.ArchiveEntry  = (*Entry)(nil)
)
