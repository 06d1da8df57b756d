package artifact

import (
	"os"
	"sync"
)

// Handle is a reference to a Ready artifact. The backing file is guaranteed
// to survive until Close, even if the entry gets evicted or invalidated in
// the meantime.
type Handle struct {
	m *Manager
	e *entry

	path        string
	size        int64
	contentType string
	filename    string

	once sync.Once
}

// Path returns the location of the artifact file.
func (h *Handle) Path() string { return h.path }

// Size returns the artifact file size in bytes.
func (h *Handle) Size() int64 { return h.size }

// ContentType returns the MIME type of the artifact.
func (h *Handle) ContentType() string { return h.contentType }

// Filename returns a client-facing filename for the artifact.
func (h *Handle) Filename() string { return h.filename }

// Open opens the backing file for reading.
func (h *Handle) Open() (*os.File, error) {
	return os.Open(h.path)
}

// Close releases the reference. Idempotent.
func (h *Handle) Close() error {
	h.once.Do(func() {
		h.m.release(h.e)
	})
	return nil
}
