package adapters

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

// MemoryOptions configures a [MemoryStore]
type MemoryOptions struct {
	Buckets []string `json:"buckets,omitempty"` // created up front
}

type memObject struct {
	data    []byte
	modTime time.Time
	etag    string
}

func (o memObject) info(key string) webdrive.ObjectInfo {
	return webdrive.ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		LastModified: o.modTime,
		ETag:         o.etag,
	}
}

// MemoryStore is a process-local [webdrive.ObjectStore]. It backs tests and
// single-process demos; nothing is persisted.
type MemoryStore struct {
	buckets *xsync.Map[string, *xsync.Map[string, memObject]]
}

func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	s := &MemoryStore{buckets: xsync.NewMap[string, *xsync.Map[string, memObject]]()}
	for _, b := range opts.Buckets {
		s.buckets.Store(b, xsync.NewMap[string, memObject]())
	}
	return s
}

// NewMemoryStoreFromJSON builds a MemoryStore from a storage section
func NewMemoryStoreFromJSON(_ context.Context, raw []byte) (webdrive.ObjectStore, error) {
	var opts MemoryOptions
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("invalid memory storage section: %w", err)
	}
	return NewMemoryStore(opts), nil
}

func (s *MemoryStore) bucket(name string) (*xsync.Map[string, memObject], error) {
	b, ok := s.buckets.Load(name)
	if !ok {
		return nil, fmt.Errorf("bucket %q does not exist", name)
	}
	return b, nil
}

func (s *MemoryStore) load(bucket, key string) (memObject, error) {
	b, err := s.bucket(bucket)
	if err != nil {
		return memObject{}, err
	}
	obj, ok := b.Load(key)
	if !ok {
		return memObject{}, webdrive.ErrObjectNotFound
	}
	return obj, nil
}

func (s *MemoryStore) EnsureBucket(ctx context.Context, bucket string) error {
	s.buckets.LoadOrStore(bucket, xsync.NewMap[string, memObject]())
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := s.load(bucket, key)
	if err == webdrive.ErrObjectNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *MemoryStore) Stat(ctx context.Context, bucket, key string) (webdrive.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return webdrive.ObjectInfo{}, err
	}
	obj, err := s.load(bucket, key)
	if err != nil {
		return webdrive.ObjectInfo{}, err
	}
	return obj.info(key), nil
}

func (s *MemoryStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, webdrive.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, webdrive.ObjectInfo{}, err
	}
	obj, err := s.load(bucket, key)
	if err != nil {
		return nil, webdrive.ObjectInfo{}, err
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info(key), nil
}

func (s *MemoryStore) GetRange(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj, err := s.load(bucket, key)
	if err != nil {
		return nil, err
	}
	size := int64(len(obj.data))
	start := min(max(offset, 0), size)
	end := size
	if length >= 0 {
		end = min(start+length, size)
	}
	return io.NopCloser(bytes.NewReader(obj.data[start:end])), nil
}

func (s *MemoryStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) (webdrive.ObjectInfo, error) {
	logger := util.GetLogger("MemoryStore.Put")
	b, err := s.bucket(bucket)
	if err != nil {
		return webdrive.ObjectInfo{}, err
	}
	if r == nil {
		r = bytes.NewReader(nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return webdrive.ObjectInfo{}, fmt.Errorf("reading body of %q: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return webdrive.ObjectInfo{}, err
	}
	if size >= 0 && int64(len(data)) != size {
		return webdrive.ObjectInfo{}, fmt.Errorf("body of %q has %d bytes, expected %d", key, len(data), size)
	}
	sum := md5.Sum(data)
	obj := memObject{data: data, modTime: time.Now().UTC(), etag: hex.EncodeToString(sum[:])}
	b.Store(key, obj)
	logger.Trace().Str("key", key).Str("size", util.Bytes(int64(len(data)))).Msg("Stored object")
	return obj.info(key), nil
}

func (s *MemoryStore) Copy(ctx context.Context, bucket, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	obj, ok := b.Load(src)
	if !ok {
		return webdrive.ErrObjectNotFound
	}
	obj.modTime = time.Now().UTC()
	b.Store(dst, obj)
	return nil
}

// Delete removes key. Deleting a missing key succeeds, as on S3.
func (s *MemoryStore) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	b.Delete(key)
	return nil
}

func (s *MemoryStore) DeleteMany(ctx context.Context, bucket string, keys []string) ([]webdrive.DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	results := make([]webdrive.DeleteResult, 0, len(keys))
	for _, k := range keys {
		b.Delete(k)
		results = append(results, webdrive.DeleteResult{Key: k})
	}
	return results, nil
}

// List snapshots the matching keys when iteration starts. Objects written
// during iteration may or may not be seen.
func (s *MemoryStore) List(ctx context.Context, bucket, prefix string, recursive bool) iter.Seq2[webdrive.ObjectInfo, error] {
	return func(yield func(webdrive.ObjectInfo, error) bool) {
		b, err := s.bucket(bucket)
		if err != nil {
			yield(webdrive.ObjectInfo{}, err)
			return
		}

		var keys []string
		b.Range(func(k string, _ memObject) bool {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
			return true
		})
		slices.Sort(keys)

		lastCommon := ""
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(webdrive.ObjectInfo{}, err)
				return
			}
			if !recursive {
				rest := k[len(prefix):]
				if idx := strings.Index(rest, "/"); idx >= 0 {
					common := prefix + rest[:idx+1]
					if common == lastCommon {
						continue
					}
					lastCommon = common
					if !yield(webdrive.ObjectInfo{Key: common}, nil) {
						return
					}
					continue
				}
			}
			obj, ok := b.Load(k)
			if !ok {
				continue
			}
			if !yield(obj.info(k), nil) {
				return
			}
		}
	}
}

var _ webdrive.ObjectStore = (*MemoryStore)(nil)
