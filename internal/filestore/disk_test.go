package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"room/file.png", "room/file.png", false},
		{"room//./file.png", "room/file.png", false},
		{`room\file.png`, "room/file.png", false},
		{"", "", true},
		{"/etc/passwd", "", true},
		{"../secret", "", true},
		{"room/../../secret", "", true},
		{"..", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanPath(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiskStore_CommitOpenDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	w, err := store.Create(ctx, "r1/a.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	ok, err := store.Exists(ctx, "r1/a.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, size, err := store.Open(ctx, "r1/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), size)

	require.NoError(t, store.Delete(ctx, "r1/a.txt"))
	assert.ErrorIs(t, store.Delete(ctx, "r1/a.txt"), ErrNotExist)

	_, _, err = store.Open(ctx, "r1/a.txt")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestDiskStore_AbortRemovesPartialFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewDiskStore(root)
	require.NoError(t, err)

	w, err := store.Create(ctx, "r1/partial.bin")
	require.NoError(t, err)
	_, err = w.Write(make([]byte, 1024))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	_, err = os.Stat(filepath.Join(root, "r1", "partial.bin"))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, w.Abort(), "second Abort is a no-op")
}

func TestDiskStore_CreateNeverReusesPath(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	w, err := store.Create(ctx, "r1/x")
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	_, err = store.Create(ctx, "r1/x")
	assert.ErrorIs(t, err, ErrExists)
}

func TestDiskStore_RejectsEscapingPaths(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Create(context.Background(), "../outside")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
