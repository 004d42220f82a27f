package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrForeignURL is returned when a URL does not belong to the store asked to
// read or delete it.
var ErrForeignURL = errors.New("storage: url not owned by this store")

// BlobStore keeps illustration bytes and hands out their public URLs.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
	// Owns reports whether url was issued by this store.
	Owns(url string) bool
	Read(ctx context.Context, url string) ([]byte, error)
}

// keyFromURL strips base from url and returns the object key.
func keyFromURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if base == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	return key, key != ""
}
