// Package storage keeps uploaded workbooks and their processed companions on
// disk under unique names.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrTooLarge is returned when an upload exceeds the size limit
	ErrTooLarge = errors.New("file exceeds size limit")
	// ErrInvalidName is returned for names that would escape the base directory
	ErrInvalidName = errors.New("invalid stored filename")
	// ErrNotFound is returned when a stored file does not exist
	ErrNotFound = errors.New("stored file not found")
)

// FileInfo contains metadata about a stored file
type FileInfo struct {
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name,omitempty"`
	Size         int64     `json:"size"`
	ModifiedAt   time.Time `json:"modified_at"`
}

// Storage defines the interface for file storage operations
type Storage interface {
	// Save stores r under a new unique name that keeps the extension of
	// filename. A positive maxBytes caps the size.
	Save(ctx context.Context, filename string, r io.Reader, maxBytes int64) (*FileInfo, error)

	// Path returns the filesystem path of a stored name
	Path(name string) (string, error)

	// Open returns a reader for a stored file
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Exists reports whether a stored file is present
	Exists(ctx context.Context, name string) (bool, error)

	// Remove deletes a stored file; a missing file is not an error
	Remove(ctx context.Context, name string) error

	// Rename moves a stored file to another name, replacing any file there
	Rename(ctx context.Context, from, to string) error

	// List returns every stored file
	List(ctx context.Context) ([]FileInfo, error)
}
