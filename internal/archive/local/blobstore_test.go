package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crickstats/cricsync/internal/archive/local"
)

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := local.New(local.Config{BaseDir: "  "})
	assert.Error(t, err)
}

func TestNewCreatesBaseDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "captures")
	_, err := local.New(local.Config{BaseDir: base})
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewRejectsFileAsBaseDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "notadir")
	require.NoError(t, os.WriteFile(base, []byte("x"), 0o640))

	_, err := local.New(local.Config{BaseDir: base})
	assert.Error(t, err)
}

func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := local.New(local.Config{BaseDir: base})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(),
		"m-1/live/20260314T100000.000Z.html", "text/html",
		strings.NewReader("<html>capture</html>"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(base, "m-1", "live", "20260314T100000.000Z.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>capture</html>", string(data))
}

func TestPutObjectRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "", "text/html", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestPutObjectRejectsEscapingPath(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../outside.html", "text/html", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestPutObjectHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.PutObject(ctx, "m-1/live/x.html", "text/html", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
