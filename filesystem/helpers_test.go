package filesystem

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/adapters"
	"github.com/brettbedarf/webdrive/config"
	"github.com/stretchr/testify/require"
)

const testUser webdrive.UserID = 42

// faultyStore is a MemoryStore whose calls can be made to fail per key
type faultyStore struct {
	*adapters.MemoryStore

	mu         sync.Mutex
	failCopy   map[string]error // by source key
	failPut    map[string]error
	failDelete map[string]error // per-key DeleteMany results
	failGet    map[string]error
	copies     int
	puts       int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		MemoryStore: adapters.NewMemoryStore(adapters.MemoryOptions{}),
		failCopy:    map[string]error{},
		failPut:     map[string]error{},
		failDelete:  map[string]error{},
		failGet:     map[string]error{},
	}
}

func (s *faultyStore) fail(m map[string]error, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m[key] = err
}

func (s *faultyStore) heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.failCopy)
	clear(s.failPut)
	clear(s.failDelete)
	clear(s.failGet)
}

func (s *faultyStore) lookup(m map[string]error, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return m[key]
}

func (s *faultyStore) Copy(ctx context.Context, bucket, src, dst string) error {
	s.mu.Lock()
	s.copies++
	s.mu.Unlock()
	if err := s.lookup(s.failCopy, src); err != nil {
		return err
	}
	return s.MemoryStore.Copy(ctx, bucket, src, dst)
}

func (s *faultyStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) (webdrive.ObjectInfo, error) {
	s.mu.Lock()
	s.puts++
	s.mu.Unlock()
	if err := s.lookup(s.failPut, key); err != nil {
		return webdrive.ObjectInfo{}, err
	}
	return s.MemoryStore.Put(ctx, bucket, key, r, size)
}

func (s *faultyStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, webdrive.ObjectInfo, error) {
	if err := s.lookup(s.failGet, key); err != nil {
		return nil, webdrive.ObjectInfo{}, err
	}
	return s.MemoryStore.Get(ctx, bucket, key)
}

func (s *faultyStore) DeleteMany(ctx context.Context, bucket string, keys []string) ([]webdrive.DeleteResult, error) {
	var (
		ok      []string
		results []webdrive.DeleteResult
	)
	for _, k := range keys {
		if err := s.lookup(s.failDelete, k); err != nil {
			results = append(results, webdrive.DeleteResult{Key: k, Err: err})
			continue
		}
		ok = append(ok, k)
	}
	deleted, err := s.MemoryStore.DeleteMany(ctx, bucket, ok)
	if err != nil {
		return nil, err
	}
	return append(results, deleted...), nil
}

func (s *faultyStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func (s *faultyStore) copyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copies
}

// newTestFS builds a FileSystem over a faultyStore with testUser's namespace
// already created
func newTestFS(t *testing.T, opts ...func(*config.Config)) (*FileSystem, *faultyStore) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	store := newFaultyStore()
	fs, err := NewFS(cfg, store)
	require.NoError(t, err)
	require.NoError(t, fs.Init(context.Background()))
	require.NoError(t, fs.CreateUserNamespace(context.Background(), testUser))
	return fs, store
}

// seed writes user paths directly to the store. Directory paths become
// markers; files hold their own path as content.
func seed(t *testing.T, fs *FileSystem, user webdrive.UserID, ps ...string) {
	t.Helper()
	for _, p := range ps {
		body := p
		if strings.HasSuffix(p, "/") {
			body = ""
		}
		_, err := fs.store.Put(context.Background(), fs.cfg.Bucket, fs.key(user, p), strings.NewReader(body), int64(len(body)))
		require.NoError(t, err)
	}
}

// userPaths lists every user path in user's namespace, root marker excluded
func userPaths(t *testing.T, fs *FileSystem, user webdrive.UserID) []string {
	t.Helper()
	var out []string
	for info, err := range fs.store.List(context.Background(), fs.cfg.Bucket, fs.tr.Prefix(user), true) {
		require.NoError(t, err)
		if p := fs.tr.ToUserPath(user, info.Key); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func content(t *testing.T, fs *FileSystem, user webdrive.UserID, p string) string {
	t.Helper()
	stream, err := fs.OpenResource(context.Background(), user, p)
	require.NoError(t, err)
	defer stream.Close()
	b, err := io.ReadAll(stream)
	require.NoError(t, err)
	return string(b)
}

func upload(name, body string) webdrive.UploadFile {
	return webdrive.UploadFile{Name: name, Size: int64(len(body)), Content: strings.NewReader(body)}
}
