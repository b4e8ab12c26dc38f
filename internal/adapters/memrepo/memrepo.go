// Package memrepo provides an in-memory game repository for dry runs.
// Nothing leaves the machine; stored files are remembered by size only.
package memrepo

import (
	"context"
	"io"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// Store is the remote state shared by every repository of one factory.
type Store struct {
	mu    sync.Mutex
	files map[string]int64
	dirs  map[string]bool
	delay time.Duration
}

// NewStore creates an empty store. Every Store call sleeps for delay to
// imitate network transfer time.
func NewStore(delay time.Duration) *Store {
	return &Store{
		files: make(map[string]int64),
		dirs:  make(map[string]bool),
		delay: delay,
	}
}

// Factory returns a RepositoryFactory whose repositories share s.
func (s *Store) Factory() ports.RepositoryFactory {
	return ports.RepositoryFactoryFunc(func() ports.GameRepository {
		return &Repository{store: s}
	})
}

// Files returns the stored paths in sorted order.
func (s *Store) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for k := range s.files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Directories returns the created directories in sorted order.
func (s *Store) Directories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.dirs))
	for k := range s.dirs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Repository implements ports.GameRepository against a Store.
type Repository struct {
	store *Store
}

func (r *Repository) Connect(ctx context.Context) error { return nil }
func (r *Repository) Disconnect() error                 { return nil }

func (r *Repository) CreateGame(ctx context.Context, game string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.dirs[game] = true
	return nil
}

func (r *Repository) CreateDirectory(ctx context.Context, game, dir string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.dirs[path.Join(game, dir)] = true
	return nil
}

// Store counts the bytes of content and records them under path.
func (r *Repository) Store(ctx context.Context, game, file string, content io.Reader) error {
	n, err := io.Copy(io.Discard, content)
	if err != nil {
		return &ports.PersistenceError{Op: "store", Path: file, Err: err}
	}

	if r.store.delay > 0 {
		select {
		case <-time.After(r.store.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.files[path.Join(game, file)] = n
	return nil
}

func (r *Repository) Exists(ctx context.Context, game, file string, size int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.files[path.Join(game, file)]
	return ok && stored == size, nil
}

// Compile-time check that Repository implements ports.GameRepository.
var _ ports.GameRepository = (*Repository)(nil)
