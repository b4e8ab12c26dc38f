package upload

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdonaldj/xboxftp/internal/mocks"
)

func newTestTransferWorker(t *testing.T, repo *mocks.MockRepository, notifier *mocks.RecordingNotifier) (*transferWorker, *queue[completion], *atomic.Int64) {
	t.Helper()
	finished := newQueue[completion](16, nil)
	pending := &atomic.Int64{}
	requests := newQueue[TransferRequest](4, nil)
	w := newTransferWorker("transfer-1", testGame, repo.Factory(), requests, finished, pending, notifier, testOptions())
	require.NoError(t, w.connect(context.Background()))
	return w, finished, pending
}

func TestTransferSkipsLargePresentFile(t *testing.T) {
	repo := mocks.NewMockRepository()
	notifier := mocks.NewRecordingNotifier()
	repo.SetFile(testGame, "media/intro.bik", 60000)
	w, finished, pending := newTestTransferWorker(t, repo, notifier)

	pending.Add(1)
	req := newMemoryRequest("media/intro.bik", make([]byte, 60000))
	require.NoError(t, w.transfer(context.Background(), req))

	assert.Empty(t, repo.StoreCalls, "present file must not be stored again")
	done := finished.Drain()
	require.Len(t, done, 1)
	assert.Equal(t, int64(60000), done[0].length)
	assert.Zero(t, pending.Load())
	assert.Equal(t, 1, notifier.Count("FileAlreadyExists", testGame))
}

func TestTransferStoresSmallFileWithoutCheck(t *testing.T) {
	repo := mocks.NewMockRepository()
	repo.SetFile(testGame, "default.xbe", 100)
	w, finished, _ := newTestTransferWorker(t, repo, mocks.NewRecordingNotifier())

	require.NoError(t, w.transfer(context.Background(), newMemoryRequest("default.xbe", make([]byte, 100))))

	assert.Empty(t, repo.ExistsCalls)
	assert.Equal(t, []string{"Halo/default.xbe"}, repo.StoredPaths())
	assert.Len(t, finished.Drain(), 1)
}

func TestTransferStoreFailure(t *testing.T) {
	repo := mocks.NewMockRepository()
	notifier := mocks.NewRecordingNotifier()
	boom := errors.New("550 disk full")
	repo.SetPathError(testGame, "default.xbe", boom)
	w, finished, pending := newTestTransferWorker(t, repo, notifier)

	pending.Add(1)
	req := newMemoryRequest("default.xbe", []byte("x"))
	err := w.transfer(context.Background(), req)

	require.ErrorIs(t, err, boom)
	assert.Empty(t, finished.Drain())
	assert.Zero(t, pending.Load())
	_, openErr := req.Open()
	assert.Error(t, openErr, "request should be released after a failure")
	require.Len(t, notifier.Filter("FileUploadFailed", testGame), 1)
}
