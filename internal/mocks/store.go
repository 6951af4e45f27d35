package mocks

import (
	"context"
	"io"
	"iter"

	"github.com/brettbedarf/webdrive"
	"github.com/stretchr/testify/mock"
)

// MockObjectStore implements webdrive.ObjectStore for testing across packages
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	args := m.Called(ctx, bucket, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectStore) Stat(ctx context.Context, bucket, key string) (webdrive.ObjectInfo, error) {
	args := m.Called(ctx, bucket, key)
	return args.Get(0).(webdrive.ObjectInfo), args.Error(1)
}

func (m *MockObjectStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, webdrive.ObjectInfo, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Get(1).(webdrive.ObjectInfo), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(webdrive.ObjectInfo), args.Error(2)
}

func (m *MockObjectStore) GetRange(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key, offset, length)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockObjectStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) (webdrive.ObjectInfo, error) {
	args := m.Called(ctx, bucket, key, r, size)

	// Handle function return types so tests can consume r
	if fn, ok := args.Get(0).(func(io.Reader) webdrive.ObjectInfo); ok {
		return fn(r), args.Error(1)
	}
	return args.Get(0).(webdrive.ObjectInfo), args.Error(1)
}

func (m *MockObjectStore) Copy(ctx context.Context, bucket, src, dst string) error {
	return m.Called(ctx, bucket, src, dst).Error(0)
}

func (m *MockObjectStore) Delete(ctx context.Context, bucket, key string) error {
	return m.Called(ctx, bucket, key).Error(0)
}

func (m *MockObjectStore) DeleteMany(ctx context.Context, bucket string, keys []string) ([]webdrive.DeleteResult, error) {
	args := m.Called(ctx, bucket, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]webdrive.DeleteResult), args.Error(1)
}

// List expects the mock to return a []webdrive.ObjectInfo and an error; the
// objects are yielded first, then the error if it is not nil.
func (m *MockObjectStore) List(ctx context.Context, bucket, prefix string, recursive bool) iter.Seq2[webdrive.ObjectInfo, error] {
	args := m.Called(ctx, bucket, prefix, recursive)
	var objs []webdrive.ObjectInfo
	if args.Get(0) != nil {
		objs = args.Get(0).([]webdrive.ObjectInfo)
	}
	err := args.Error(1)
	return func(yield func(webdrive.ObjectInfo, error) bool) {
		for _, o := range objs {
			if !yield(o, nil) {
				return
			}
		}
		if err != nil {
			yield(webdrive.ObjectInfo{}, err)
		}
	}
}

func (m *MockObjectStore) EnsureBucket(ctx context.Context, bucket string) error {
	return m.Called(ctx, bucket).Error(0)
}

var _ webdrive.ObjectStore = (*MockObjectStore)(nil)

// MockStoreProvider implements webdrive.StoreProvider for testing across packages
type MockStoreProvider struct {
	mock.Mock
}

func (m *MockStoreProvider) NewStore(ctx context.Context, raw []byte) (webdrive.ObjectStore, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(webdrive.ObjectStore), args.Error(1)
}

var _ webdrive.StoreProvider = (*MockStoreProvider)(nil)
