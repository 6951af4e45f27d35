package webdrive

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"
)

// ErrObjectNotFound is returned by [ObjectStore] implementations when a key
// does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo contains standardized metadata across all store types
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// DeleteResult is the outcome of deleting a single key in [ObjectStore.DeleteMany]
type DeleteResult struct {
	Key string
	Err error
}

// ObjectStore is the flat key/value contract of the object-storage backend.
// Keys are unique within a bucket; there is no notion of directories.
type ObjectStore interface {
	// Exists reports whether key is present. A missing key is not an error.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// Stat returns the metadata of key or [ErrObjectNotFound]
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)

	// Get opens key for reading. Caller must close the returned reader.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)

	// GetRange opens length bytes of key starting at offset.
	// A negative length reads to the end of the object.
	GetRange(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error)

	// Put writes r under key, overwriting any existing object.
	// size is -1 when unknown.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64) (ObjectInfo, error)

	// Copy duplicates src to dst inside the backend without streaming the
	// bytes through the caller.
	Copy(ctx context.Context, bucket, src, dst string) error

	Delete(ctx context.Context, bucket, key string) error

	// DeleteMany deletes keys and reports a result per key. The returned
	// error is reserved for failures of the whole request.
	DeleteMany(ctx context.Context, bucket string, keys []string) ([]DeleteResult, error)

	// List lazily yields every object whose key starts with prefix in key
	// order. When recursive is false only immediate children are returned and
	// nested keys collapse into their "/"-terminated common prefix.
	List(ctx context.Context, bucket, prefix string, recursive bool) iter.Seq2[ObjectInfo, error]

	// EnsureBucket creates bucket if it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error
}

// StoreProvider is a factory for concrete [ObjectStore] implementations
// generated from a raw backend configuration section.
// Implementations should handle resource management (connection pooling etc).
type StoreProvider interface {
	NewStore(ctx context.Context, raw []byte) (ObjectStore, error)
}
