package mocks

import (
	"context"
	"io"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// MockRepository implements ports.GameRepository for testing. Every
// connection created by its factory shares the same remote state, so one
// MockRepository stands in for the whole server. It is safe for concurrent use.
type MockRepository struct {
	mu sync.Mutex
	// Files maps "game/path" to the stored size
	Files map[string]int64
	// Games records games created with CreateGame
	Games map[string]bool
	// Directories records "game/dir" for each CreateDirectory call, in order
	Directories []string
	// Errors maps method names to errors
	Errors map[string]error
	// PathErrors maps "game/path" to errors returned by Store and Exists
	PathErrors map[string]error
	// StoreDelay is slept before each Store
	StoreDelay time.Duration

	// ExistsCalls records "game/path" for each Exists call
	ExistsCalls []string
	// StoreCalls records "game/path" for each Store call
	StoreCalls      []string
	ConnectCalls    int
	DisconnectCalls int
	Created         int
}

// NewMockRepository creates a new mock repository.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		Files:      make(map[string]int64),
		Games:      make(map[string]bool),
		Errors:     make(map[string]error),
		PathErrors: make(map[string]error),
	}
}

// Factory returns a RepositoryFactory whose connections share m.
func (m *MockRepository) Factory() ports.RepositoryFactory {
	return ports.RepositoryFactoryFunc(func() ports.GameRepository {
		m.mu.Lock()
		m.Created++
		m.mu.Unlock()
		return m
	})
}

// SetFile marks path below game as stored with size bytes.
func (m *MockRepository) SetFile(game, file string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[path.Join(game, file)] = size
}

// SetError injects an error for a method name.
func (m *MockRepository) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[method] = err
}

// SetPathError injects an error for Store and Exists on one path.
func (m *MockRepository) SetPathError(game, file string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PathErrors[path.Join(game, file)] = err
}

// Connect opens the connection.
func (m *MockRepository) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConnectCalls++
	if err, ok := m.Errors["Connect"]; ok {
		return err
	}
	return nil
}

// Disconnect closes the connection.
func (m *MockRepository) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DisconnectCalls++
	if err, ok := m.Errors["Disconnect"]; ok {
		return err
	}
	return nil
}

// CreateGame creates the root directory of a game.
func (m *MockRepository) CreateGame(ctx context.Context, game string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errors["CreateGame"]; ok {
		return err
	}
	m.Games[game] = true
	return nil
}

// CreateDirectory creates dir below game.
func (m *MockRepository) CreateDirectory(ctx context.Context, game, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errors["CreateDirectory"]; ok {
		return err
	}
	m.Directories = append(m.Directories, path.Join(game, dir))
	return nil
}

// Store records the number of bytes read from r.
func (m *MockRepository) Store(ctx context.Context, game, file string, r io.Reader) error {
	key := path.Join(game, file)

	m.mu.Lock()
	m.StoreCalls = append(m.StoreCalls, key)
	delay := m.StoreDelay
	err := m.Errors["Store"]
	if pathErr, ok := m.PathErrors[key]; ok {
		err = pathErr
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[key] = n
	return nil
}

// Exists reports whether path was stored with exactly size bytes.
func (m *MockRepository) Exists(ctx context.Context, game, file string, size int64) (bool, error) {
	key := path.Join(game, file)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExistsCalls = append(m.ExistsCalls, key)
	if err, ok := m.PathErrors[key]; ok {
		return false, err
	}
	if err, ok := m.Errors["Exists"]; ok {
		return false, err
	}
	stored, ok := m.Files[key]
	return ok && stored == size, nil
}

// ExistsCount returns the number of Exists calls so far.
func (m *MockRepository) ExistsCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ExistsCalls)
}

// StoredPaths returns the sorted "game/path" keys of every Store call.
func (m *MockRepository) StoredPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.StoreCalls...)
	sort.Strings(out)
	return out
}

// StoredSize returns the stored size of path below game.
func (m *MockRepository) StoredSize(game, file string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	size, ok := m.Files[path.Join(game, file)]
	return size, ok
}

// Balanced reports whether every Connect was matched by a Disconnect.
func (m *MockRepository) Balanced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ConnectCalls == m.DisconnectCalls
}

// Compile-time check that MockRepository implements ports.GameRepository.
var _ ports.GameRepository = (*MockRepository)(nil)
