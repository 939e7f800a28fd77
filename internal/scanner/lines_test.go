package scanner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLinesPushesTrimmedCodes(t *testing.T) {
	f := NewFeed(4)
	err := ReadLines(context.Background(), strings.NewReader(" T-0001 \n\nT-0002\r\n"), f, nil)
	require.NoError(t, err)

	assert.Equal(t, "T-0001", <-f.Codes())
	assert.Equal(t, "T-0002", <-f.Codes())
	assert.Zero(t, f.Dropped())
}

func TestReadLinesEndsQuietlyOnStoppedFeed(t *testing.T) {
	f := NewFeed(1)
	f.Stop()
	assert.NoError(t, ReadLines(context.Background(), strings.NewReader("T-0001\n"), f, nil))
}

func TestReadLinesHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ReadLines(ctx, strings.NewReader("T-0001\n"), NewFeed(1), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
