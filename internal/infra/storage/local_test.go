package storage

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polaris/gateway/internal/domain/gateway"
)

func TestLocal_SaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	err = store.Save(context.Background(), "file-1.txt", bytes.NewReader([]byte("hello")), 5)
	require.NoError(t, err)

	r, err := store.Open(context.Background(), "file-1.txt")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestLocal_Locate_PrimaryDir(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), "file-2.txt", bytes.NewReader([]byte("x")), 1))

	path, ok := store.Locate("file-2.txt")
	require.True(t, ok)
	require.Equal(t, filepath.Join(dir, "file-2.txt"), path)
}

func TestLocal_Locate_NotFound(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok := store.Locate("does-not-exist.txt")
	require.False(t, ok)
}

func TestLocal_Locate_DeletedSentinel(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok := store.Locate(gateway.AddressDeleted)
	require.False(t, ok)
}

func TestLocal_Open_MissingReturnsError(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "missing.txt")
	require.Error(t, err)
}
