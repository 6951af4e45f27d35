package adapters

import (
	"context"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/brettbedarf/webdrive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "webdrive-test"

// storeFactory returns a fresh store with testBucket already created
type storeFactory func(t *testing.T) webdrive.ObjectStore

func putString(t *testing.T, s webdrive.ObjectStore, key, body string) {
	t.Helper()
	_, err := s.Put(context.Background(), testBucket, key, strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func listKeys(t *testing.T, s webdrive.ObjectStore, prefix string, recursive bool) []string {
	t.Helper()
	var keys []string
	for info, err := range s.List(context.Background(), testBucket, prefix, recursive) {
		require.NoError(t, err)
		keys = append(keys, info.Key)
	}
	return keys
}

// runStoreConformance checks the ObjectStore contract every backend must honor
func runStoreConformance(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("put stat get", func(t *testing.T) {
		s := newStore(t)
		info, err := s.Put(ctx, testBucket, "u/a.txt", strings.NewReader("hello"), 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), info.Size)

		stat, err := s.Stat(ctx, testBucket, "u/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "u/a.txt", stat.Key)
		assert.Equal(t, int64(5), stat.Size)
		assert.False(t, stat.LastModified.IsZero())

		rc, got, err := s.Get(ctx, testBucket, "u/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "hello", readAll(t, rc))
		assert.Equal(t, int64(5), got.Size)
	})

	t.Run("put nil body", func(t *testing.T) {
		s := newStore(t)
		info, err := s.Put(ctx, testBucket, "u/empty.txt", nil, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(0), info.Size)

		rc, _, err := s.Get(ctx, testBucket, "u/empty.txt")
		require.NoError(t, err)
		assert.Equal(t, "", readAll(t, rc))
	})

	t.Run("put unknown size and overwrite", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Put(ctx, testBucket, "u/a.txt", strings.NewReader("first"), -1)
		require.NoError(t, err)
		_, err = s.Put(ctx, testBucket, "u/a.txt", strings.NewReader("second!"), -1)
		require.NoError(t, err)

		rc, _, err := s.Get(ctx, testBucket, "u/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "second!", readAll(t, rc))
	})

	t.Run("zero byte marker", func(t *testing.T) {
		s := newStore(t)
		putString(t, s, "u/docs/", "")

		ok, err := s.Exists(ctx, testBucket, "u/docs/")
		require.NoError(t, err)
		assert.True(t, ok)

		stat, err := s.Stat(ctx, testBucket, "u/docs/")
		require.NoError(t, err)
		assert.Zero(t, stat.Size)
	})

	t.Run("missing keys", func(t *testing.T) {
		s := newStore(t)
		ok, err := s.Exists(ctx, testBucket, "u/nope")
		require.NoError(t, err, "a missing key is not an error for Exists")
		assert.False(t, ok)

		_, err = s.Stat(ctx, testBucket, "u/nope")
		assert.ErrorIs(t, err, webdrive.ErrObjectNotFound)

		_, _, err = s.Get(ctx, testBucket, "u/nope")
		assert.ErrorIs(t, err, webdrive.ErrObjectNotFound)
	})

	t.Run("get range", func(t *testing.T) {
		s := newStore(t)
		putString(t, s, "u/r.txt", "0123456789")

		tests := []struct {
			offset, length int64
			want           string
		}{
			{0, 4, "0123"},
			{4, 3, "456"},
			{7, -1, "789"},
			{8, 10, "89"},
			{10, 5, ""},
			{3, 0, ""},
		}
		for _, tt := range tests {
			rc, err := s.GetRange(ctx, testBucket, "u/r.txt", tt.offset, tt.length)
			require.NoError(t, err, "range %d+%d", tt.offset, tt.length)
			assert.Equal(t, tt.want, readAll(t, rc), "range %d+%d", tt.offset, tt.length)
		}
	})

	t.Run("copy", func(t *testing.T) {
		s := newStore(t)
		putString(t, s, "u/src/a.txt", "data")

		require.NoError(t, s.Copy(ctx, testBucket, "u/src/a.txt", "u/dst/a.txt"))

		rc, _, err := s.Get(ctx, testBucket, "u/dst/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "data", readAll(t, rc))
		ok, err := s.Exists(ctx, testBucket, "u/src/a.txt")
		require.NoError(t, err)
		assert.True(t, ok, "copy must keep the source")

		assert.ErrorIs(t, s.Copy(ctx, testBucket, "u/missing", "u/x"), webdrive.ErrObjectNotFound)
	})

	t.Run("delete and delete many", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"u/a", "u/b", "u/c", "u/d"} {
			putString(t, s, k, k)
		}

		require.NoError(t, s.Delete(ctx, testBucket, "u/a"))
		results, err := s.DeleteMany(ctx, testBucket, []string{"u/b", "u/c"})
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.NoError(t, r.Err, "key %s", r.Key)
		}

		assert.Equal(t, []string{"u/d"}, listKeys(t, s, "u/", true))
	})

	t.Run("list recursive", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"u/", "u/b.txt", "u/a/", "u/a/x.txt", "u/a/sub/y.txt", "v/other.txt"} {
			putString(t, s, k, "")
		}

		keys := listKeys(t, s, "u/", true)
		assert.Equal(t, []string{"u/", "u/a/", "u/a/sub/y.txt", "u/a/x.txt", "u/b.txt"}, keys)
	})

	t.Run("list non-recursive", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"u/", "u/b.txt", "u/a/", "u/a/x.txt", "u/c/deep/z.txt", "u/d.txt"} {
			putString(t, s, k, "")
		}

		keys := listKeys(t, s, "u/", false)
		assert.Equal(t, []string{"u/", "u/a/", "u/b.txt", "u/c/", "u/d.txt"}, keys,
			"nested keys must collapse into their common prefix")
		assert.True(t, slices.IsSorted(keys))
	})

	t.Run("list stops early", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"u/1", "u/2", "u/3"} {
			putString(t, s, k, "")
		}
		n := 0
		for _, err := range s.List(ctx, testBucket, "u/", true) {
			require.NoError(t, err)
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, 2, n)
	})

	t.Run("ensure bucket is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.EnsureBucket(ctx, "fresh-bucket"))
		require.NoError(t, s.EnsureBucket(ctx, "fresh-bucket"))
		_, err := s.Put(ctx, "fresh-bucket", "k", strings.NewReader("v"), 1)
		require.NoError(t, err)
	})
}
