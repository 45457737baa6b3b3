package localfs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

func TestSaveAndOpenNestedKey(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), "scans/abc.jpg", strings.NewReader("photo")))

	rc, err := store.Open(context.Background(), "scans/abc.jpg")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "photo", string(body))
}

func TestRejectsEscapingKeys(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../etc/passwd", "/abs/path", "a/../../b"} {
		err := store.Save(context.Background(), key, strings.NewReader("x"))
		require.ErrorIs(t, err, domain.ErrInvalidInput, key)
	}
}

func TestOpenMissingKey(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "library/missing.jpg")
	require.ErrorIs(t, err, domain.ErrLookupFailed)
}

func TestSaveStopsOnCancelledContext(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, store.Save(ctx, "scans/x.jpg", strings.NewReader("photo")))

	_, err = store.Open(context.Background(), "scans/x.jpg")
	require.ErrorIs(t, err, domain.ErrLookupFailed)
}
