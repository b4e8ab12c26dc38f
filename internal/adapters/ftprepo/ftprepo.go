// Package ftprepo provides a game repository adapter for FTP servers such as
// the ones running on modded consoles.
package ftprepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"path"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// Conn is the subset of *ftp.ServerConn used by the repository.
type Conn interface {
	Login(user, password string) error
	Quit() error
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	FileSize(path string) (int64, error)
}

// Dialer opens an unauthenticated control connection.
type Dialer func(ctx context.Context, addr string, timeout time.Duration) (Conn, error)

// Config holds connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	// Root is the remote directory games are created in, e.g. /E/Games.
	Root string

	ConnectTimeout time.Duration
	// RetryBudget bounds the total time Connect keeps retrying.
	RetryBudget time.Duration
	// RetryInterval is the pause between attempts.
	RetryInterval time.Duration
	// StoreRetries is how many times a transient Store failure is retried.
	StoreRetries uint64
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 21
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.RetryBudget == 0 {
		c.RetryBudget = 30 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 2 * time.Second
	}
	if c.StoreRetries == 0 {
		c.StoreRetries = 3
	}
	if c.Root == "" {
		c.Root = "/"
	}
	return c
}

// Repository implements ports.GameRepository over one FTP control connection.
type Repository struct {
	cfg  Config
	dial Dialer
	log  zerolog.Logger
	conn Conn
}

// Option configures a Repository.
type Option func(*Repository)

// WithDialer replaces the network dialer. Used in tests.
func WithDialer(d Dialer) Option {
	return func(r *Repository) {
		r.dial = d
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Repository) {
		r.log = l
	}
}

// New creates an unconnected repository.
func New(cfg Config, opts ...Option) *Repository {
	r := &Repository{
		cfg:  cfg.withDefaults(),
		dial: dialFTP,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFactory returns a factory creating one repository per call.
func NewFactory(cfg Config, opts ...Option) ports.RepositoryFactory {
	return ports.RepositoryFactoryFunc(func() ports.GameRepository {
		return New(cfg, opts...)
	})
}

func dialFTP(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	return ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
}

// Connect dials and logs in. Transient failures are retried every
// RetryInterval until RetryBudget is spent; a rejected login fails at once.
func (r *Repository) Connect(ctx context.Context) error {
	addr := r.cfg.addr()
	backoff := retry.WithMaxDuration(r.cfg.RetryBudget, retry.NewConstant(r.cfg.RetryInterval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := r.login(ctx, addr)
		if err == nil {
			r.conn = conn
			return nil
		}
		if !isTransient(err) {
			return err
		}
		r.log.Warn().Err(err).Str("addr", addr).Msg("Unable to connect. Retrying")
		return retry.RetryableError(err)
	})
	if err != nil {
		return &ports.ConnectionError{Addr: addr, Err: err}
	}
	return nil
}

func (r *Repository) login(ctx context.Context, addr string) (Conn, error) {
	conn, err := r.dial(ctx, addr, r.cfg.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	if err := conn.Login(r.cfg.User, r.cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, err
	}
	return conn, nil
}

// Disconnect closes the control connection.
func (r *Repository) Disconnect() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Quit()
	r.conn = nil
	return err
}

// CreateGame creates the game directory below Root if it does not exist.
func (r *Repository) CreateGame(ctx context.Context, game string) error {
	return r.mkdir("create game", r.gamePath(game, ""))
}

// CreateDirectory creates dir below the game directory if it does not exist.
func (r *Repository) CreateDirectory(ctx context.Context, game, dir string) error {
	return r.mkdir("create directory", r.gamePath(game, dir))
}

func (r *Repository) mkdir(op, remote string) error {
	if r.conn == nil {
		return errNotConnected
	}
	err := r.conn.MakeDir(remote)
	if err == nil || statusCode(err) == ftp.StatusFileUnavailable {
		// 550 is what servers answer for an existing directory.
		return nil
	}
	return &ports.PersistenceError{Op: op, Path: remote, Transient: isTransient(err), Err: err}
}

// Store uploads r to path below the game directory. Transient failures are
// retried when r can be rewound.
func (r *Repository) Store(ctx context.Context, game, file string, content io.Reader) error {
	if r.conn == nil {
		return errNotConnected
	}
	remote := r.gamePath(game, file)
	seeker, canRewind := content.(io.Seeker)
	backoff := retry.WithMaxRetries(r.cfg.StoreRetries, retry.NewConstant(r.cfg.RetryInterval))
	attempt := 0

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewinding %s: %w", file, err)
			}
		}
		err := r.conn.Stor(remote, content)
		if err == nil {
			return nil
		}
		if canRewind && isTransient(err) {
			r.log.Warn().Err(err).Str("path", remote).Int("attempt", attempt).Msg("Upload failed. Retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return &ports.PersistenceError{Op: "store", Path: remote, Transient: isTransient(err), Err: err}
	}
	return nil
}

// Exists reports whether path exists below the game directory with size bytes.
// Permanent negative replies such as 550 mean the file is missing.
func (r *Repository) Exists(ctx context.Context, game, file string, size int64) (bool, error) {
	if r.conn == nil {
		return false, errNotConnected
	}
	remote := r.gamePath(game, file)
	remoteSize, err := r.conn.FileSize(remote)
	if err != nil {
		if code := statusCode(err); code >= 500 && code < 600 {
			return false, nil
		}
		return false, &ports.PersistenceError{Op: "exists", Path: remote, Transient: isTransient(err), Err: err}
	}
	return remoteSize == size, nil
}

func (r *Repository) gamePath(game, rel string) string {
	return path.Join(r.cfg.Root, game, rel)
}

var errNotConnected = errors.New("ftp: not connected")

// statusCode extracts the FTP reply code from err, or 0.
func statusCode(err error) int {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code
	}
	return 0
}

// isTransient classifies err. Network errors and 4xx replies are worth
// retrying; 5xx replies, including 530 not logged in, are not.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if code := statusCode(err); code != 0 {
		return code >= 400 && code < 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Compile-time check that Repository implements ports.GameRepository.
var _ ports.GameRepository = (*Repository)(nil)
