// Package filestore stores the documents of users: uploads, exports and
// generated reports.
//
// A file is addressed by a key "<owner>/<uuid>-<name>", created by [NewKey].
// Two backends exist: a local directory and a Google Cloud Storage bucket.
package filestore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a key has no file.
var ErrNotFound = errors.New("file not found")

// Store is a file storage.
type Store interface {
	// Put writes the content read from r under key.
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	// Open returns a reader of the content stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// URL returns the location of key, for display purposes.
	URL(key string) string
}

// NewKey returns a fresh key for a file named 'name' owned by 'owner'.
func NewKey(owner, name string) string {
	return owner + "/" + uuid.NewString() + "-" + cleanName(name)
}

// Owner returns the owner of a key.
func Owner(key string) string {
	owner, _, _ := strings.Cut(key, "/")
	return owner
}

// cleanName keeps only the base name of a file, without separators.
func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case ".", "/", "..":
		return "file"
	}
	return name
}

// validKey rejects keys escaping their owner directory.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
