package trace

import (
	"errors"
	"fmt"
	"os"
)

// Backend names accepted by Create.
const (
	BackendFlat    = "flat"
	BackendChunked = "chunked"
)

// Open loads an existing trace, choosing the backend from what is on
// disk: a directory is a chunked trace, a regular file a flat one.
func Open(path string, chunkSize int) (Trace, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	if info.IsDir() {
		return OpenChunked(path, chunkSize)
	}
	return OpenFlat(path)
}

// Create makes an empty trace of the named backend at path, discarding
// whatever was stored there.
func Create(backend, path string, chunkSize int) (Trace, error) {
	var t Trace
	switch backend {
	case BackendFlat, "":
		t = NewFlat(path)
	case BackendChunked:
		t = NewChunked(path, chunkSize)
	default:
		return nil, fmt.Errorf("unknown trace backend %q", backend)
	}
	if err := t.Clear(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return t, nil
}
