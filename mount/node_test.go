package mount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/adapters"
	"github.com/brettbedarf/webdrive/config"
	"github.com/brettbedarf/webdrive/filesystem"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser webdrive.UserID = 7

// newTestRoot builds a root node over an in-memory drive. The node is
// attached to a bridge so that child inodes can be created without a
// kernel mount.
func newTestRoot(t *testing.T, files ...string) (*Node, *filesystem.FileSystem) {
	t.Helper()
	ctx := context.Background()
	drive, err := filesystem.NewFS(config.NewDefaultConfig(), adapters.NewMemoryStore(adapters.MemoryOptions{}))
	require.NoError(t, err)
	require.NoError(t, drive.Init(ctx))
	require.NoError(t, drive.CreateUserNamespace(ctx, testUser))

	for _, f := range files {
		dir, name := "", f
		if i := strings.LastIndex(f, "/"); i >= 0 {
			dir, name = f[:i+1], f[i+1:]
		}
		if name == "" {
			_, err := drive.CreateDirectory(ctx, testUser, dir)
			require.NoError(t, err)
			continue
		}
		_, err := drive.UploadResource(ctx, testUser, dir, []webdrive.UploadFile{
			{Name: name, Size: int64(len(f)), Content: strings.NewReader(f)},
		})
		require.NoError(t, err)
	}

	root := NewRoot(drive, testUser, Options{DirectIO: true})
	gofuse.NewNodeFS(root, &gofuse.Options{})
	return root, drive
}

func lookup(t *testing.T, parent *Node, name string) *Node {
	t.Helper()
	var out fuse.EntryOut
	child, errno := parent.Lookup(context.Background(), name, &out)
	require.Equal(t, syscall.Errno(0), errno)
	return child.Operations().(*Node)
}

func TestErrno(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want syscall.Errno
	}{
		{nil, 0},
		{webdrive.NewError(webdrive.ResourceNotFound, "a", nil), syscall.ENOENT},
		{webdrive.NewError(webdrive.DirectoryNotExist, "a/", nil), syscall.ENOENT},
		{webdrive.NewError(webdrive.ResourceAlreadyExists, "a", nil), syscall.EEXIST},
		{webdrive.NewError(webdrive.NotADirectory, "a", nil), syscall.ENOTDIR},
		{webdrive.NewError(webdrive.InvalidPath, "a", nil), syscall.EINVAL},
		{webdrive.StorageError(webdrive.OpList, "a", errors.New("boom")), syscall.EIO},
		{fmt.Errorf("list: %w", context.Canceled), syscall.EINTR},
		{errors.New("boom"), syscall.EIO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Errno(tt.err), "%v", tt.err)
	}
}

func TestNode_LookupAndGetattr(t *testing.T) {
	t.Parallel()

	root, _ := newTestRoot(t, "docs/", "docs/a.txt")
	ctx := context.Background()

	docs := lookup(t, root, "docs")
	assert.Equal(t, "docs/", docs.Path())

	var out fuse.EntryOut
	child, errno := docs.Lookup(ctx, "a.txt", &out)
	require.Equal(t, syscall.Errno(0), errno)
	assert.Equal(t, "docs/a.txt", child.Operations().(*Node).Path())
	assert.Equal(t, uint32(fileMode), out.Mode)
	assert.Equal(t, uint64(len("docs/a.txt")), out.Size)

	var attr fuse.AttrOut
	require.Equal(t, syscall.Errno(0), docs.Getattr(ctx, nil, &attr))
	assert.Equal(t, uint32(dirMode), attr.Mode)

	require.Equal(t, syscall.Errno(0), root.Getattr(ctx, nil, &attr), "root marker exists")

	_, errno = root.Lookup(ctx, "missing", &out)
	assert.Equal(t, syscall.ENOENT, errno)
	_, errno = root.Lookup(ctx, "bad:name", &out)
	assert.Equal(t, syscall.ENOENT, errno)
}

func TestNode_Readdir(t *testing.T) {
	t.Parallel()

	root, _ := newTestRoot(t, "docs/", "docs/a.txt", "top.txt")

	stream, errno := root.Readdir(context.Background())
	require.Equal(t, syscall.Errno(0), errno)
	var got []fuse.DirEntry
	for stream.HasNext() {
		e, errno := stream.Next()
		require.Equal(t, syscall.Errno(0), errno)
		got = append(got, fuse.DirEntry{Name: e.Name, Mode: e.Mode})
	}
	assert.Equal(t, []fuse.DirEntry{
		{Name: "docs", Mode: syscall.S_IFDIR},
		{Name: "top.txt", Mode: syscall.S_IFREG},
	}, got)
}

func TestNode_OpenAndRead(t *testing.T) {
	t.Parallel()

	root, _ := newTestRoot(t, "top.txt")
	ctx := context.Background()
	file := lookup(t, root, "top.txt")

	_, flags, errno := file.Open(ctx, syscall.O_RDONLY)
	require.Equal(t, syscall.Errno(0), errno)
	assert.NotZero(t, flags&fuse.FOPEN_DIRECT_IO)

	_, _, errno = file.Open(ctx, syscall.O_WRONLY)
	assert.Equal(t, syscall.EROFS, errno)
	_, _, errno = root.Open(ctx, syscall.O_RDONLY)
	assert.Equal(t, syscall.EISDIR, errno)

	dest := make([]byte, 3)
	res, errno := file.Read(ctx, nil, dest, 2)
	require.Equal(t, syscall.Errno(0), errno)
	data, status := res.Bytes(make([]byte, 3))
	require.True(t, status.Ok())
	assert.Equal(t, "p.t", string(data))
}

func TestNode_MkdirUnlinkRmdir(t *testing.T) {
	t.Parallel()

	root, drive := newTestRoot(t, "full/", "full/x.txt", "top.txt")
	ctx := context.Background()

	var out fuse.EntryOut
	_, errno := root.Mkdir(ctx, "new", 0o755, &out)
	require.Equal(t, syscall.Errno(0), errno)
	ok, err := drive.Exists(ctx, testUser, "new/")
	require.NoError(t, err)
	assert.True(t, ok)

	_, errno = root.Mkdir(ctx, "new", 0o755, &out)
	assert.Equal(t, syscall.EEXIST, errno)

	assert.Equal(t, syscall.ENOTEMPTY, root.Rmdir(ctx, "full"))
	assert.Equal(t, syscall.Errno(0), root.Rmdir(ctx, "new"))
	assert.Equal(t, syscall.Errno(0), root.Unlink(ctx, "top.txt"))
	assert.Equal(t, syscall.ENOENT, root.Unlink(ctx, "top.txt"))

	ok, err = drive.Exists(ctx, testUser, "top.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNode_Rename(t *testing.T) {
	t.Parallel()

	root, drive := newTestRoot(t, "a/", "a/f.txt", "b/", "top.txt")
	ctx := context.Background()
	b := lookup(t, root, "b")

	require.Equal(t, syscall.Errno(0), root.Rename(ctx, "top.txt", b, "moved.txt", 0))
	require.Equal(t, syscall.Errno(0), root.Rename(ctx, "a", b, "a2", 0))

	names, err := drive.ListNames(ctx, testUser, "b/", true)
	require.NoError(t, err)
	assert.Contains(t, names, "user-7-files/b/moved.txt")
	assert.Contains(t, names, "user-7-files/b/a2/f.txt")

	assert.Equal(t, syscall.ENOENT, root.Rename(ctx, "top.txt", b, "again.txt", 0))
	assert.Equal(t, syscall.EINVAL, b.Rename(ctx, "moved.txt", root, "x", gofuse.RENAME_EXCHANGE))
}

func TestNode_RenameKeepsLoadedNodesValid(t *testing.T) {
	t.Parallel()

	root, _ := newTestRoot(t, "a/", "a/sub/", "a/sub/f.txt", "b/")
	ctx := context.Background()

	// attach the nodes the way the kernel bridge does after lookups
	a := lookup(t, root, "a")
	require.True(t, root.AddChild("a", a.EmbeddedInode(), false))
	sub := lookup(t, a, "sub")
	require.True(t, a.AddChild("sub", sub.EmbeddedInode(), false))
	f := lookup(t, sub, "f.txt")
	require.True(t, sub.AddChild("f.txt", f.EmbeddedInode(), false))
	b := lookup(t, root, "b")

	require.Equal(t, syscall.Errno(0), root.Rename(ctx, "a", b, "a2", 0))

	assert.Equal(t, "b/a2/", a.Path())
	assert.Equal(t, "b/a2/sub/", sub.Path())
	assert.Equal(t, "b/a2/sub/f.txt", f.Path())

	var attr fuse.AttrOut
	require.Equal(t, syscall.Errno(0), a.Getattr(ctx, nil, &attr))
	assert.Equal(t, uint32(dirMode), attr.Mode)
	require.Equal(t, syscall.Errno(0), f.Getattr(ctx, nil, &attr))
	assert.Equal(t, uint64(len("a/sub/f.txt")), attr.Size)

	var out fuse.EntryOut
	_, errno := sub.Lookup(ctx, "f.txt", &out)
	assert.Equal(t, syscall.Errno(0), errno)
}

func TestNode_CreateUploadsOnFlush(t *testing.T) {
	t.Parallel()

	root, drive := newTestRoot(t, "taken.txt")
	ctx := context.Background()

	var out fuse.EntryOut
	_, _, _, errno := root.Create(ctx, "taken.txt", syscall.O_WRONLY, 0o644, &out)
	assert.Equal(t, syscall.EEXIST, errno)

	_, fh, _, errno := root.Create(ctx, "new.txt", syscall.O_WRONLY, 0o644, &out)
	require.Equal(t, syscall.Errno(0), errno)
	h := fh.(*writeHandle)

	n, errno := h.Write(ctx, []byte("hello"), 0)
	require.Equal(t, syscall.Errno(0), errno)
	assert.Equal(t, uint32(5), n)
	_, errno = h.Write(ctx, []byte(" world"), 5)
	require.Equal(t, syscall.Errno(0), errno)
	assert.Equal(t, uint64(11), h.size())

	require.Equal(t, syscall.Errno(0), h.Flush(ctx))
	require.Equal(t, syscall.Errno(0), h.Flush(ctx), "second flush is a no-op")
	_, errno = h.Write(ctx, []byte("!"), 11)
	assert.Equal(t, syscall.EROFS, errno)

	got, err := drive.ReadAt(ctx, testUser, "new.txt", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}
