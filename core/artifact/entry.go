package artifact

import (
	"path/filepath"
	"strings"
	"time"
)

// Status is the lifecycle state of a cache entry.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// entry is one row of the manager's table. All fields are guarded by the
// manager mutex except ready, which is closed exactly once when the entry
// leaves Pending.
type entry struct {
	id          string
	path        string
	size        int64
	contentType string
	filename    string // suggested client-facing filename
	createdAt   time.Time
	lastAccess  time.Time
	status      Status
	err         error

	refs      int  // open handles
	waiters   int  // callers blocked on ready
	condemned bool // file must be unlinked once refs and waiters drain

	ready chan struct{}
	seq   uint64 // creation order, breaks LRU ties
}

var extContentTypes = map[string]string{
	".webm": "audio/webm",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".opus": "audio/opus",
	".ogg":  "audio/ogg",
}

var contentTypeExts = map[string]string{
	"audio/webm": ".webm",
	"audio/mp4":  ".m4a",
	"audio/mpeg": ".mp3",
	"audio/opus": ".opus",
	"audio/ogg":  ".ogg",
}

// contentTypeByExt resolves a MIME type for a cached file.
func contentTypeByExt(path string) string {
	if ct, ok := extContentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "audio/webm"
}

// extByContentType picks the on-disk extension for a fetched artifact.
func extByContentType(contentType string) string {
	if ext, ok := contentTypeExts[contentType]; ok {
		return ext
	}
	return ".webm"
}
