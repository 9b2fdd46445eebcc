package source

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ContentSource = (*FilesystemSource)(nil)
	_ ContentSource = (*MemorySource)(nil)
)

func TestFilesystemSource(t *testing.T) {
	src := NewFilesystem()

	content, err := src.Read("../../go.mod")
	require.NoError(t, err)
	assert.Contains(t, string(content), "module github.com/panbanda/clonefix")

	_, err = src.Read("nonexistent.txt")
	assert.Error(t, err)
}

func TestFilesystemSource_Binary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.py")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x41}, 0o644))

	_, err := NewFilesystem().Read(path)
	assert.Error(t, err)
}

func TestMemorySource(t *testing.T) {
	src := NewMemory(map[string]string{"a.py": "x = 1\n"})

	content, err := src.Read("a.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(content))

	_, err = src.Read("b.py")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	src.Set("b.py", []byte("y = 2\n"))
	content, err = src.Read("b.py")
	require.NoError(t, err)
	assert.Equal(t, "y = 2\n", string(content))
}
