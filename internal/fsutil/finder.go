// Package fsutil provides file system utility functions.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindFilesByExtension searches the top level of each directory for files
// ending with the specified extension. Directories that do not exist are
// skipped. Results keep directory order, then name order.
func FindFilesByExtension(dirs []string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), extension) {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}
	return files, nil
}

// FindFirst returns the first existing regular file among candidates, trying
// every candidate in the first directory before moving on to the next one.
func FindFirst(dirs []string, candidates []string) (string, bool) {
	for _, dir := range dirs {
		for _, name := range candidates {
			path := filepath.Join(dir, name)
			info, err := os.Stat(path)
			if err == nil && info.Mode().IsRegular() {
				return path, true
			}
		}
	}
	return "", false
}
