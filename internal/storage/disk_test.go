package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadStoresFile(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "http://localhost:8080/files/")
	require.NoError(t, err)

	path, err := store.Upload(context.Background(), "report.pdf", []byte("content"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_report.pdf"))

	data, err := os.ReadFile(filepath.Join(store.dir, path))
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)
}

func TestUploadSameNameDoesNotCollide(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "http://localhost:8080/files")
	require.NoError(t, err)

	first, err := store.Upload(context.Background(), "photo.png", []byte("a"))
	require.NoError(t, err)
	second, err := store.Upload(context.Background(), "photo.png", []byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestPublicURL(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "http://localhost:8080/files/")
	require.NoError(t, err)
	url := store.PublicURL("abc_photo.png")
	assert.Equal(t, "http://localhost:8080/files/abc_photo.png", url)
}

func TestSanitizeStripsPath(t *testing.T) {
	assert.Equal(t, "passwd", sanitize("../../etc/passwd"))
	assert.Equal(t, "my_file.txt", sanitize("my file.txt"))
	assert.Equal(t, "file", sanitize(""))
}
