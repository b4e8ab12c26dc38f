package ratelimited

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/ratelimit"

	"github.com/mcdonaldj/xboxftp/internal/mocks"
)

func TestExistsDelegates(t *testing.T) {
	inner := mocks.NewMockRepository()
	inner.SetFile("Halo", "default.xbe", 10)
	repo := New(inner, ratelimit.NewUnlimited())

	ok, err := repo.Exists(context.Background(), "Halo", "default.xbe", 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, inner.ExistsCount())
}

func TestExistsHonorsCancelledContext(t *testing.T) {
	inner := mocks.NewMockRepository()
	repo := New(inner, ratelimit.NewUnlimited())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Exists(ctx, "Halo", "default.xbe", 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, inner.ExistsCount())
}

func TestFactorySharesRate(t *testing.T) {
	inner := mocks.NewMockRepository()
	factory := NewFactory(inner.Factory(), 50)

	a := factory.Create()
	b := factory.Create()

	start := time.Now()
	for i := 0; i < 5; i++ {
		_, err := a.Exists(context.Background(), "Halo", "x", 1)
		require.NoError(t, err)
		_, err = b.Exists(context.Background(), "Halo", "x", 1)
		require.NoError(t, err)
	}
	// ten probes at 50/s need at least 9 intervals of 20ms
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, 10, inner.ExistsCount())
}

func TestFactoryWithoutRateReturnsInner(t *testing.T) {
	inner := mocks.NewMockRepository()
	factory := NewFactory(inner.Factory(), 0)

	_, wrapped := factory.Create().(*Repository)
	assert.False(t, wrapped)
}
