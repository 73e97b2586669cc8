package ledgerstate

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff() backoff {
	b := defaultBackoff()
	b.initial = time.Millisecond
	b.max = 2 * time.Millisecond
	return b
}

func TestBackoff_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := fastBackoff().do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("file is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoff_GivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := fastBackoff().do(context.Background(), func() error {
		calls++
		return errors.New("file is locked")
	})
	require.EqualError(t, err, "file is locked")
	assert.Equal(t, 3, calls)
}

func TestBackoff_MissingFileIsNotRetried(t *testing.T) {
	calls := 0
	err := fastBackoff().do(context.Background(), func() error {
		calls++
		return os.ErrNotExist
	})
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 1, calls)
}

func TestBackoff_StopsOnCancel(t *testing.T) {
	b := fastBackoff()
	b.initial = time.Hour
	b.max = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := b.do(ctx, func() error {
		calls++
		cancel()
		return errors.New("file is locked")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
