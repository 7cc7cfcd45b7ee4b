// Package filestore is the byte-stream storage behind attachments. Paths are
// slash separated and relative to the store root; a path is written once and
// never reused.
package filestore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var (
	// ErrNotExist is returned when a path has no stored bytes.
	ErrNotExist = errors.New("file does not exist")
	// ErrInvalidPath is returned for empty, absolute or escaping paths.
	ErrInvalidPath = errors.New("invalid file path")
	// ErrExists is returned by Create when the path is already taken.
	ErrExists = errors.New("file already exists")
)

// Writer receives the bytes of one file. Exactly one of Commit or Abort must
// be called; Abort removes everything written so far.
type Writer interface {
	io.Writer
	Commit() error
	Abort() error
}

// Store is write-stream-to-path, open, delete-path and exists-path.
type Store interface {
	Create(ctx context.Context, name string) (Writer, error)
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
}

// CleanPath validates a relative store path and returns its canonical form.
func CleanPath(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") {
		return "", ErrInvalidPath
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	return clean, nil
}
