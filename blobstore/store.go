// Package blobstore abstracts the byte regions that hold serialized
// structures. A store maps names to immutable blobs; readers address a
// blob at arbitrary offsets, builders stream into a writable blob that
// becomes visible atomically on Close.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error satisfying
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// ErrTruncated is returned when a blob is shorter than a read requires.
// Unlike a transient I/O failure this indicates corruption.
var ErrTruncated = fmt.Errorf("blobstore: blob truncated")

// BlobStore is a named collection of immutable blobs.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create opens a new writable blob. The blob is not visible under
	// its name until Close succeeds.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a complete blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to an immutable blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is an optional interface for blobs whose content is already
// resident as a byte slice. The slice is valid until the blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// WritableBlob is an append-only handle for streaming construction.
type WritableBlob interface {
	io.Writer
	io.Closer
	// Sync flushes buffered data to stable storage where the backend
	// supports it.
	Sync() error
}

// ReadAll returns the full content of a blob. Mappable blobs hand back
// their resident slice without copying; the result then shares the blob's
// lifetime.
func ReadAll(b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		return m.Bytes()
	}
	data := make([]byte, b.Size())
	n, err := b.ReadAt(data, 0)
	if err == io.EOF && int64(n) == b.Size() {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if int64(n) != b.Size() {
		return nil, fmt.Errorf("%w: read %d of %d bytes", ErrTruncated, n, b.Size())
	}
	return data, nil
}

// Fetch opens a named blob, reads it fully and closes it.
func Fetch(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	data, err := ReadAll(b)
	if err != nil {
		return nil, err
	}
	if _, ok := b.(Mappable); ok {
		// The blob is closed on return, so detach from its region.
		data = append([]byte(nil), data...)
	}
	return data, nil
}
