// Package archive stores published analysis reports on a local directory or
// an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/newthinker/cyclewatch/internal/core"
)

// Storage defines the interface for report storage backends
type Storage interface {
	// Write stores data at the given key, replacing any previous object
	Write(ctx context.Context, key string, data []byte) error

	// Read retrieves the object at key; a missing object yields core.ErrNoData
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns all keys under prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object at key
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists at key
	Exists(ctx context.Context, key string) (bool, error)
}

// CleanKey normalizes a slash separated key and rejects keys escaping the root
func CleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.Contains(key, "..") {
		return "", core.Errorf(core.ErrInvalidParameter, "invalid archive key %q", key)
	}
	return cleaned, nil
}

func storageError(op, key string, err error) error {
	return core.WrapError(core.ErrStorageFailed, fmt.Errorf("%s %s: %w", op, key, err))
}
