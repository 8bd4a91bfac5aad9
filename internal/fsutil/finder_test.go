package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, nil, 0644))
}

func TestFindFirst_DirectoryOrderWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	touch(t, filepath.Join(first, "libdemo.so"))
	touch(t, filepath.Join(second, "demo.so"))

	path, ok := FindFirst([]string{first, second}, []string{"demo.so", "libdemo.so"})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(first, "libdemo.so"), path)
}

func TestFindFirst_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "demo.so"), 0755))

	_, ok := FindFirst([]string{dir, filepath.Join(dir, "missing")}, []string{"demo.so"})
	assert.False(t, ok)
}

func TestFindFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.so"))
	touch(t, filepath.Join(dir, "a.so"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "nested", "c.so"))

	files, err := FindFilesByExtension([]string{dir, filepath.Join(dir, "missing")}, ".so")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.so"), filepath.Join(dir, "b.so")}, files)
}
