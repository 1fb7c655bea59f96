package core

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ParserKind selects the parser used for a monitored file.
type ParserKind string

const (
	KindWorkflow ParserKind = "workflow"
	KindLog      ParserKind = "log"
)

// File extensions recognised when no explicit kind is given.
var (
	WorkflowExtensions = []string{".xml", ".workflow"}
	LogExtensions      = []string{".log", ".out", ".err"}
)

// KindForPath infers the parser kind from a path. A non-empty hint wins.
func KindForPath(path string, hint ParserKind) ParserKind {
	if hint != "" {
		return hint
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case slices.Contains(WorkflowExtensions, ext):
		return KindWorkflow
	case slices.Contains(LogExtensions, ext):
		return KindLog
	case strings.Contains(strings.ToLower(filepath.Base(path)), "log"):
		return KindLog
	default:
		return KindWorkflow
	}
}

// IsRecognised reports whether the path has a workflow or log extension.
func IsRecognised(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(WorkflowExtensions, ext) || slices.Contains(LogExtensions, ext)
}

// Signature identifies a version of a file on disk. Hash is only populated for
// files small enough to be hashed on every tick.
type Signature struct {
	ModTime time.Time
	Size    int64
	Hash    string
}

// Equal compares two signatures. Hashes are compared only when both are set,
// so a file growing past the hash threshold still compares by mtime+size.
func (s Signature) Equal(other Signature) bool {
	if s.Hash != "" && other.Hash != "" {
		return s.Hash == other.Hash && s.Size == other.Size
	}
	return s.ModTime.Equal(other.ModTime) && s.Size == other.Size
}

// IsZero reports whether no signature has been recorded yet.
func (s Signature) IsZero() bool {
	return s.ModTime.IsZero() && s.Size == 0 && s.Hash == ""
}

// MonitoredPath is a file registered with the monitor.
type MonitoredPath struct {
	Path        string     `json:"path"`
	Kind        ParserKind `json:"kind"`
	Signature   Signature  `json:"-"`
	Enabled     bool       `json:"enabled"`
	LastError   string     `json:"last_error,omitempty"`
	LastChecked time.Time  `json:"last_checked"`
}
