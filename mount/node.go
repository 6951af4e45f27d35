// Package mount exposes one user's drive as a FUSE filesystem tree.
//
// Every node is a thin view over a user path; nothing is cached beyond what
// the kernel caches through attribute and entry timeouts.
package mount

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/filesystem"
	"github.com/brettbedarf/webdrive/internal/paths"
	"github.com/brettbedarf/webdrive/internal/util"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

const (
	dirMode  = syscall.S_IFDIR | 0o755
	fileMode = syscall.S_IFREG | 0o644

	// preferred size for fs ops
	blockSize = 4096
)

// Drive is the subset of [filesystem.FileSystem] the mount needs
type Drive interface {
	GetResource(ctx context.Context, user webdrive.UserID, path string) (webdrive.Resource, error)
	ListDirectory(ctx context.Context, user webdrive.UserID, path string) ([]webdrive.Resource, error)
	ReadAt(ctx context.Context, user webdrive.UserID, path string, offset, length int64) ([]byte, error)
	CreateDirectory(ctx context.Context, user webdrive.UserID, path string) (webdrive.Resource, error)
	DeleteResource(ctx context.Context, user webdrive.UserID, path string) (*filesystem.Report, error)
	MoveResource(ctx context.Context, user webdrive.UserID, from, to string) (*filesystem.Report, error)
	UploadResource(ctx context.Context, user webdrive.UserID, targetDir string, files []webdrive.UploadFile) ([]webdrive.Resource, error)
}

var _ Drive = (*filesystem.FileSystem)(nil)

type Options struct {
	DirectIO bool // Bypass the page cache on open
}

// mountState is shared by every node of one mount
type mountState struct {
	drive Drive
	user  webdrive.UserID
	opts  Options
	uid   uint32
	gid   uint32

	pathMu sync.RWMutex // guards Node.path of every node
}

// Node is a file or directory of the mounted drive
type Node struct {
	gofuse.Inode
	state *mountState
	path  string // user path, "" for the root, directories end in "/"
}

var (
	_ gofuse.InodeEmbedder = (*Node)(nil)
	_ gofuse.NodeGetattrer = (*Node)(nil)
	_ gofuse.NodeLookuper  = (*Node)(nil)
	_ gofuse.NodeReaddirer = (*Node)(nil)
	_ gofuse.NodeOpener    = (*Node)(nil)
	_ gofuse.NodeReader    = (*Node)(nil)
	_ gofuse.NodeMkdirer   = (*Node)(nil)
	_ gofuse.NodeCreater   = (*Node)(nil)
	_ gofuse.NodeUnlinker  = (*Node)(nil)
	_ gofuse.NodeRmdirer   = (*Node)(nil)
	_ gofuse.NodeRenamer   = (*Node)(nil)
)

// NewRoot returns the root node of user's drive
func NewRoot(drive Drive, user webdrive.UserID, opts Options) *Node {
	return &Node{
		state: &mountState{
			drive: drive,
			user:  user,
			opts:  opts,
			uid:   uint32(os.Getuid()),
			gid:   uint32(os.Getgid()),
		},
	}
}

// Path is the user path the node stands for
func (n *Node) Path() string {
	n.state.pathMu.RLock()
	defer n.state.pathMu.RUnlock()
	return n.path
}

// rebase rewrites the path of n and of every loaded descendant after the
// subtree moved from one path to another. The kernel keeps the node IDs.
func (n *Node) rebase(from, to string) {
	n.state.pathMu.Lock()
	defer n.state.pathMu.Unlock()
	n.rebaseLocked(from, to)
}

func (n *Node) rebaseLocked(from, to string) {
	n.path = paths.Rebase(n.path, from, to)
	for _, ch := range n.Children() {
		if c, ok := ch.Operations().(*Node); ok {
			c.rebaseLocked(from, to)
		}
	}
}

func (n *Node) isDir() bool {
	return paths.Kind(n.Path()) == webdrive.KindDirectory
}

func (n *Node) child(name string, dir bool) string {
	p := paths.Join(n.Path(), name)
	if dir {
		return paths.AsDirectory(p)
	}
	return p
}

func (n *Node) newChild(ctx context.Context, r webdrive.Resource) *gofuse.Inode {
	mode := uint32(syscall.S_IFREG)
	if r.IsDir() {
		mode = syscall.S_IFDIR
	}
	return n.NewInode(ctx, &Node{state: n.state, path: r.Path}, gofuse.StableAttr{Mode: mode})
}

// fillAttr writes the attributes of r into out
func (n *Node) fillAttr(r webdrive.Resource, out *fuse.Attr) {
	if r.IsDir() {
		out.Mode = dirMode
	} else {
		out.Mode = fileMode
		out.Size = r.Size
		out.Blocks = (r.Size + 511) / 512
	}
	out.Nlink = 1
	out.Blksize = blockSize
	out.Owner = fuse.Owner{Uid: n.state.uid, Gid: n.state.gid}
	if !r.LastModified.IsZero() {
		mtime := r.LastModified
		out.SetTimes(nil, &mtime, &mtime)
	}
}

// errno logs unexpected failures and maps err for the kernel
func (n *Node) errno(op string, p string, err error) syscall.Errno {
	errno := Errno(err)
	if errno == syscall.EIO {
		logger := util.GetLogger("Mount." + op)
		logger.Error().Err(err).Stringer("user", n.state.user).Str("path", p).Msg("Drive operation failed")
	}
	return errno
}

func (n *Node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if h, ok := f.(*writeHandle); ok {
		n.fillAttr(webdrive.Resource{Path: n.Path(), Size: h.size()}, &out.Attr)
		return 0
	}
	p := n.Path()
	r, err := n.state.drive.GetResource(ctx, n.state.user, p)
	if err != nil {
		return n.errno("Getattr", p, err)
	}
	n.fillAttr(r, &out.Attr)
	return 0
}

// Lookup resolves name as a file first, then as a directory
func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if paths.ValidateFileName(name) != nil {
		return nil, syscall.ENOENT
	}
	var lastErr error
	for _, dir := range []bool{false, true} {
		p := n.child(name, dir)
		r, err := n.state.drive.GetResource(ctx, n.state.user, p)
		if err == nil {
			n.fillAttr(r, &out.Attr)
			return n.newChild(ctx, r), 0
		}
		if !errors.Is(err, webdrive.ErrResourceNotFound) {
			return nil, n.errno("Lookup", p, err)
		}
		lastErr = err
	}
	return nil, Errno(lastErr)
}

func (n *Node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	p := n.Path()
	children, err := n.state.drive.ListDirectory(ctx, n.state.user, p)
	if err != nil {
		return nil, n.errno("Readdir", p, err)
	}
	entries := make([]fuse.DirEntry, 0, len(children))
	for _, r := range children {
		mode := uint32(syscall.S_IFREG)
		if r.IsDir() {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: strings.TrimSuffix(r.Name, paths.Separator), Mode: mode})
	}
	return gofuse.NewListDirStream(entries), 0
}

// Open allows reads only. Stored files are replaced by upload, never edited
// in place.
func (n *Node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if n.isDir() {
		return nil, 0, syscall.EISDIR
	}
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	var fuseFlags uint32
	if n.state.opts.DirectIO {
		fuseFlags |= fuse.FOPEN_DIRECT_IO
	} else {
		fuseFlags |= fuse.FOPEN_KEEP_CACHE
	}
	return nil, fuseFlags, 0
}

func (n *Node) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	p := n.Path()
	buf, err := n.state.drive.ReadAt(ctx, n.state.user, p, off, int64(len(dest)))
	if err != nil {
		return nil, n.errno("Read", p, err)
	}
	return fuse.ReadResultData(buf), 0
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	p := n.child(name, true)
	r, err := n.state.drive.CreateDirectory(ctx, n.state.user, p)
	if err != nil {
		return nil, n.errno("Mkdir", p, err)
	}
	n.fillAttr(r, &out.Attr)
	return n.newChild(ctx, r), 0
}

// Create starts a new file. Its content is buffered and uploaded when the
// handle is flushed.
func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	if err := paths.ValidateFileName(name); err != nil {
		return nil, nil, 0, Errno(err)
	}
	p := n.child(name, false)
	for _, candidate := range []string{p, paths.AsDirectory(p)} {
		_, err := n.state.drive.GetResource(ctx, n.state.user, candidate)
		if err == nil {
			return nil, nil, 0, syscall.EEXIST
		}
		if !errors.Is(err, webdrive.ErrResourceNotFound) {
			return nil, nil, 0, n.errno("Create", candidate, err)
		}
	}

	r := webdrive.Resource{Path: p, Kind: webdrive.KindFile}
	n.fillAttr(r, &out.Attr)
	h := &writeHandle{state: n.state, dir: n.Path(), name: name}
	return n.newChild(ctx, r), h, fuse.FOPEN_DIRECT_IO, 0
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	p := n.child(name, false)
	if _, err := n.state.drive.DeleteResource(ctx, n.state.user, p); err != nil {
		return n.errno("Unlink", p, err)
	}
	return 0
}

// Rmdir only removes empty directories, like rmdir(2)
func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	p := n.child(name, true)
	children, err := n.state.drive.ListDirectory(ctx, n.state.user, p)
	if err != nil {
		return n.errno("Rmdir", p, err)
	}
	if len(children) > 0 {
		return syscall.ENOTEMPTY
	}
	if _, err := n.state.drive.DeleteResource(ctx, n.state.user, p); err != nil {
		return n.errno("Rmdir", p, err)
	}
	return 0
}

// Rename moves a file or directory. Existing destinations are never
// replaced; the call fails with EEXIST instead.
func (n *Node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	dst, ok := newParent.(*Node)
	if !ok {
		return syscall.EXDEV
	}
	if flags&gofuse.RENAME_EXCHANGE != 0 {
		return syscall.EINVAL
	}

	from := n.child(name, false)
	r, err := n.state.drive.GetResource(ctx, n.state.user, from)
	if errors.Is(err, webdrive.ErrResourceNotFound) {
		from = n.child(name, true)
		r, err = n.state.drive.GetResource(ctx, n.state.user, from)
	}
	if err != nil {
		return n.errno("Rename", from, err)
	}

	to := dst.child(newName, r.IsDir())
	if _, err := n.state.drive.MoveResource(ctx, n.state.user, from, to); err != nil {
		return n.errno("Rename", from, err)
	}
	if moved := n.GetChild(name); moved != nil {
		if m, ok := moved.Operations().(*Node); ok {
			m.rebase(from, to)
		}
	}
	return 0
}
