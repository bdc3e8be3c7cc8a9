package core

import (
	"context"
	"errors"
	"io"
)

var ErrFileNotFound = errors.New("file not found")

// FileStorage stores uploaded files under object keys (see storage/files).
type FileStorage interface {
	Save(ctx context.Context, name string, r io.Reader) error
	// Open returns ErrFileNotFound when no file is stored under name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}
