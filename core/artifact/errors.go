package artifact

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Request after the manager has been shut down.
var ErrClosed = errors.New("artifact cache is closed")

// FetchError means the remote platform rejected the request or was
// unreachable. The condition is transient; a later request retries.
type FetchError struct {
	ID  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.ID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TranscodeError means the local audio conversion failed for this attempt.
type TranscodeError struct {
	ID  string
	Err error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s: %v", e.ID, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// StorageError means the cache directory was not writable or the disk is
// full. The failed entry is dropped so future requests may retry.
type StorageError struct {
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.ID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// classify maps a fetch failure onto the error taxonomy. Errors already
// typed by the fetcher pass through; everything else counts as a remote
// fetch failure.
func classify(id string, err error) error {
	var fe *FetchError
	var te *TranscodeError
	var se *StorageError
	switch {
	case errors.As(err, &fe), errors.As(err, &te), errors.As(err, &se):
		return err
	default:
		return &FetchError{ID: id, Err: err}
	}
}
