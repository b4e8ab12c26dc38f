package ftprepo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

type fakeConn struct {
	mu        sync.Mutex
	loginErr  error
	storErrs  []error
	sizes     map[string]int64
	sizeErr   error
	mkdirErr  error
	dirs      []string
	stored    map[string][]byte
	storCalls int
	quit      bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{sizes: map[string]int64{}, stored: map[string][]byte{}}
}

func (c *fakeConn) Login(user, password string) error { return c.loginErr }
func (c *fakeConn) Quit() error                       { c.quit = true; return nil }

func (c *fakeConn) MakeDir(p string) error {
	c.dirs = append(c.dirs, p)
	return c.mkdirErr
}

func (c *fakeConn) Stor(p string, r io.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storCalls++
	data, _ := io.ReadAll(r)
	if len(c.storErrs) > 0 {
		err := c.storErrs[0]
		c.storErrs = c.storErrs[1:]
		if err != nil {
			return err
		}
	}
	c.stored[p] = data
	return nil
}

func (c *fakeConn) FileSize(p string) (int64, error) {
	if c.sizeErr != nil {
		return 0, c.sizeErr
	}
	size, ok := c.sizes[p]
	if !ok {
		return 0, &textproto.Error{Code: 550, Msg: "No such file"}
	}
	return size, nil
}

func testConfig() Config {
	return Config{
		Host:          "192.168.1.20",
		User:          "xbox",
		Password:      "xbox",
		Root:          "/E/Games",
		RetryBudget:   50 * time.Millisecond,
		RetryInterval: time.Millisecond,
	}
}

func connected(t *testing.T, conn *fakeConn) *Repository {
	t.Helper()
	repo := New(testConfig(), WithDialer(func(context.Context, string, time.Duration) (Conn, error) {
		return conn, nil
	}))
	require.NoError(t, repo.Connect(context.Background()))
	return repo
}

func TestConnectRetriesTransientFailures(t *testing.T) {
	conn := newFakeConn()
	attempts := 0
	repo := New(testConfig(), WithDialer(func(context.Context, string, time.Duration) (Conn, error) {
		attempts++
		if attempts < 3 {
			return nil, &textproto.Error{Code: 421, Msg: "Too many users"}
		}
		return conn, nil
	}))

	require.NoError(t, repo.Connect(context.Background()))
	assert.Equal(t, 3, attempts)
	require.NoError(t, repo.Disconnect())
	assert.True(t, conn.quit)
}

func TestConnectFailsFastOnBadLogin(t *testing.T) {
	conn := newFakeConn()
	conn.loginErr = &textproto.Error{Code: 530, Msg: "Login incorrect"}
	attempts := 0
	repo := New(testConfig(), WithDialer(func(context.Context, string, time.Duration) (Conn, error) {
		attempts++
		return conn, nil
	}))

	err := repo.Connect(context.Background())
	var connErr *ports.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "192.168.1.20:21", connErr.Addr)
	assert.Equal(t, 1, attempts)
}

func TestConnectGivesUpAfterBudget(t *testing.T) {
	repo := New(testConfig(), WithDialer(func(context.Context, string, time.Duration) (Conn, error) {
		return nil, &textproto.Error{Code: 421, Msg: "Service not available"}
	}))

	err := repo.Connect(context.Background())
	var connErr *ports.ConnectionError
	require.ErrorAs(t, err, &connErr)
}

func TestExists(t *testing.T) {
	conn := newFakeConn()
	conn.sizes["/E/Games/Halo/maps/a.map"] = 42
	repo := connected(t, conn)
	ctx := context.Background()

	ok, err := repo.Exists(ctx, "Halo", "maps/a.map", 42)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "Halo", "maps/a.map", 41)
	require.NoError(t, err)
	assert.False(t, ok, "size mismatch is not present")

	ok, err = repo.Exists(ctx, "Halo", "maps/missing.map", 1)
	require.NoError(t, err)
	assert.False(t, ok, "550 is not an error")

	conn.sizeErr = &textproto.Error{Code: 421, Msg: "Timeout"}
	_, err = repo.Exists(ctx, "Halo", "maps/a.map", 42)
	var pe *ports.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Transient)
}

func TestStoreRetriesSeekableReader(t *testing.T) {
	conn := newFakeConn()
	conn.storErrs = []error{&textproto.Error{Code: 426, Msg: "Connection closed"}}
	repo := connected(t, conn)

	err := repo.Store(context.Background(), "Halo", "default.xbe", bytes.NewReader([]byte("payload")))
	require.NoError(t, err)
	assert.Equal(t, 2, conn.storCalls)
	assert.Equal(t, "payload", string(conn.stored["/E/Games/Halo/default.xbe"]))
}

func TestStoreNonTransientFailure(t *testing.T) {
	conn := newFakeConn()
	conn.storErrs = []error{&textproto.Error{Code: 552, Msg: "Disk full"}}
	repo := connected(t, conn)

	err := repo.Store(context.Background(), "Halo", "default.xbe", bytes.NewReader([]byte("x")))
	var pe *ports.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.False(t, pe.Transient)
	assert.Equal(t, 1, conn.storCalls)
}

func TestCreateDirectoriesIdempotent(t *testing.T) {
	conn := newFakeConn()
	repo := connected(t, conn)
	ctx := context.Background()

	require.NoError(t, repo.CreateGame(ctx, "Halo"))
	require.NoError(t, repo.CreateDirectory(ctx, "Halo", "maps/levels"))
	assert.Equal(t, []string{"/E/Games/Halo", "/E/Games/Halo/maps/levels"}, conn.dirs)

	conn.mkdirErr = &textproto.Error{Code: 550, Msg: "Directory exists"}
	assert.NoError(t, repo.CreateDirectory(ctx, "Halo", "maps"))

	conn.mkdirErr = errors.New("broken pipe")
	assert.Error(t, repo.CreateDirectory(ctx, "Halo", "media"))
}

func TestOperationsRequireConnect(t *testing.T) {
	repo := New(testConfig())
	_, err := repo.Exists(context.Background(), "Halo", "a", 1)
	assert.Error(t, err)
	assert.NoError(t, repo.Disconnect())
}
