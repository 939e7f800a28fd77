package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedDeliversUntilPaused(t *testing.T) {
	ctx := context.Background()
	f := NewFeed(4)

	ok, err := f.Push(ctx, "T-0001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "T-0001", <-f.Codes())

	f.Pause()
	assert.True(t, f.Paused())
	ok, err = f.Push(ctx, "T-0002")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, f.Dropped())

	f.Resume()
	ok, err = f.Push(ctx, "T-0003")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "T-0003", <-f.Codes())
}

func TestFeedDropsWhenFull(t *testing.T) {
	f := NewFeed(1)
	ok, _ := f.Push(context.Background(), "T-0001")
	assert.True(t, ok)
	ok, _ = f.Push(context.Background(), "T-0002")
	assert.False(t, ok)
}

func TestStopClosesChannel(t *testing.T) {
	f := NewFeed(1)
	f.Stop()
	f.Stop()

	_, open := <-f.Codes()
	assert.False(t, open)
	_, err := f.Push(context.Background(), "T-0001")
	assert.ErrorIs(t, err, ErrStopped)
}
