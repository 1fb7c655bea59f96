// Package fsutil holds small file helpers shared by the monitor and the
// synchronizer.
package fsutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func openScoped(path string) (*os.File, error) {
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid file path: %q", path)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	return root.Open(base)
}

// ReadFileScoped reads a file by opening a root at the file's directory.
// This scopes access to the intended directory and avoids path traversal.
func ReadFileScoped(path string) ([]byte, error) {
	file, err := openScoped(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// ReadCapped reads path fully when it is at most maxSize bytes. Larger files
// are read in line-capped mode: only the last maxSize bytes are loaded, the
// leading partial line is dropped and at most maxLines complete lines are
// kept. The boolean result reports whether capping happened.
func ReadCapped(path string, maxSize int64, maxLines int) ([]byte, bool, error) {
	file, err := openScoped(path)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, false, err
	}
	if maxSize <= 0 || info.Size() <= maxSize {
		data, err := io.ReadAll(file)
		return data, false, err
	}

	start := info.Size() - maxSize
	buf := make([]byte, maxSize)
	n, err := file.ReadAt(buf, start)
	if err != nil && err != io.EOF {
		return nil, false, err
	}
	buf = buf[:n]

	// Drop the line the window cut through.
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		buf = buf[i+1:]
	} else {
		buf = nil
	}
	return TailLines(buf, maxLines), true, nil
}

// TailLines returns the last n newline-terminated lines of data plus any
// trailing partial line. n <= 0 returns data unchanged.
func TailLines(data []byte, n int) []byte {
	if n <= 0 || len(data) == 0 {
		return data
	}
	end := len(data)
	if data[end-1] == '\n' {
		end--
	}
	count := 0
	for i := end - 1; i >= 0; i-- {
		if data[i] == '\n' {
			count++
			if count == n {
				return data[i+1:]
			}
		}
	}
	return data
}
