package ports

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// GameRepository abstracts the remote server games are uploaded to.
// Production code uses the ftprepo and s3repo adapters; tests use MockRepository.
//
// A GameRepository holds one connection and must not be shared between
// goroutines. Transient failures are retried inside the implementation.
type GameRepository interface {
	// Connect opens the connection. Transient failures are retried for a
	// bounded duration; authentication failures return immediately.
	Connect(ctx context.Context) error

	// Disconnect closes the connection.
	Disconnect() error

	// CreateGame creates the root directory of a game if it does not exist.
	CreateGame(ctx context.Context, game string) error

	// CreateDirectory creates dir below the root directory of game.
	CreateDirectory(ctx context.Context, game, dir string) error

	// Store writes the content of r to path below the root directory of game.
	// When r is an io.Seeker it is rewound before a retry.
	Store(ctx context.Context, game, path string, r io.Reader) error

	// Exists reports whether path exists below game with exactly size bytes.
	// Not-found class errors return false, nil.
	Exists(ctx context.Context, game, path string, size int64) (bool, error)
}

// RepositoryFactory creates unconnected repositories, one per worker.
type RepositoryFactory interface {
	Create() GameRepository
}

// RepositoryFactoryFunc adapts a function to RepositoryFactory.
type RepositoryFactoryFunc func() GameRepository

// Create calls f.
func (f RepositoryFactoryFunc) Create() GameRepository {
	return f()
}

// PersistenceError is returned by repositories when an operation fails.
type PersistenceError struct {
	Op        string // Operation that failed, e.g. "store"
	Path      string // Remote path involved, if any
	Transient bool   // Whether retrying could succeed
	Err       error  // Underlying error
}

func (e *PersistenceError) Error() string {
	kind := "non-transient"
	if e.Transient {
		kind = "transient"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s %s failed (%s): %v", e.Op, e.Path, kind, e.Err)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Op, kind, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ConnectionError is returned by Connect when the server cannot be reached
// or rejects the credentials.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a persistence error worth retrying.
func IsTransient(err error) bool {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
