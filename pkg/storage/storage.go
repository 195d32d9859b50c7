// Package storage abstracts the blob store that session and subscription
// repositories persist to. Paths are slash-separated keys; the local backend
// maps them onto a directory tree, the S3 backend onto object keys.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound reports that no blob exists at the requested path. Backends
// wrap it so callers can test with errors.Is.
var ErrNotFound = errors.New("not found")

type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	// List returns the keys of all blobs directly under prefix. A missing
	// prefix is not an error; it lists as empty.
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
}
