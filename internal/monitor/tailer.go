package monitor

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/parser"
)

// Tailer reads the lines appended to a log file since the previous Read.
// Rotation (a different file behind the path) and truncation restart the
// read from the beginning.
type Tailer struct {
	path    string
	maxRead int64

	mu     sync.Mutex
	info   os.FileInfo
	offset int64
	lineNo int
	skip   bool // Drop bytes up to the next newline
	buf    parser.LineBuffer
}

// NewTailer creates a Tailer for path. At most maxRead bytes are consumed
// per Read; a first Read on a larger file starts maxRead bytes from the end.
func NewTailer(path string, maxRead int64) *Tailer {
	if maxRead <= 0 {
		maxRead = DefaultMaxFileSize
	}
	return &Tailer{path: path, maxRead: maxRead}
}

// Path returns the tailed path.
func (t *Tailer) Path() string { return t.path }

// Offset returns the byte offset of the next read.
func (t *Tailer) Offset() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offset
}

// Pending returns the withheld partial last line.
func (t *Tailer) Pending() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Pending()
}

// Read returns the complete lines appended since the last call and the
// 1-based number of the first one. An unfinished last line is held back.
// After rotation or truncation first is 1 even when no line is complete yet.
func (t *Tailer) Read() ([]string, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}

	restarted := false
	switch {
	case t.info == nil:
		if info.Size() > t.maxRead {
			t.offset = info.Size() - t.maxRead
			t.skip = true
		}
	case !os.SameFile(t.info, info) || info.Size() < t.offset:
		t.reset()
		restarted = true
	}
	t.info = info

	remaining := info.Size() - t.offset
	if remaining <= 0 {
		if restarted {
			return nil, 1, nil
		}
		return nil, 0, nil
	}
	chunk := make([]byte, min(remaining, t.maxRead))
	n, err := f.ReadAt(chunk, t.offset)
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	chunk = chunk[:n]
	t.offset += int64(n)

	if t.skip {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			return nil, 0, nil
		}
		chunk = chunk[i+1:]
		t.skip = false
	}

	lines := t.buf.Write(chunk)
	first := t.lineNo + 1
	t.lineNo += len(lines)
	return lines, first, nil
}

// Reset forgets the read position so the next Read starts over.
func (t *Tailer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
	t.info = nil
}

func (t *Tailer) reset() {
	t.offset = 0
	t.lineNo = 0
	t.skip = false
	t.buf.Reset()
}
