// Package blob provides the durable key-value primitive behind the fallback
// storage engine: whole serialized collections are read and written by key.
//
// Two implementations are available:
//
//   - FileStore: one file per key inside a directory, replaced atomically.
//   - BoltStore: a single bbolt database file with one bucket.
//
// Callers (the fallback engine) decide how to react to write failures; this
// package only reports them.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store reads and writes serialized blobs by key.
type Store interface {
	// Get returns the blob stored under key. found is false (and err nil)
	// when nothing has been written for key yet.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)
	// Put replaces the blob stored under key.
	Put(ctx context.Context, key string, data []byte) error
	// Close releases the underlying resources.
	Close() error
}

// Drivers accepted by Open.
const (
	DriverFile = "file"
	DriverBolt = "bolt"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("blob: store is closed")

// ErrEmptyKey is returned when a blank key is used.
var ErrEmptyKey = errors.New("blob: empty key")

// Open constructs the Store selected by driver rooted at path. For
// DriverFile, path is a directory; for DriverBolt, a database file.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverFile, "":
		return NewFileStore(path)
	case DriverBolt:
		return NewBoltStore(path)
	default:
		return nil, fmt.Errorf("blob: unknown driver %q", driver)
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}
