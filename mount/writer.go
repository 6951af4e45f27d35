package mount

import (
	"bytes"
	"context"
	"sync"
	"syscall"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/internal/util"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
)

// writeHandle buffers the content of a newly created file and uploads it on
// the first Flush. Later writes after the upload fail with EROFS.
type writeHandle struct {
	state *mountState
	dir   string // user path of the parent directory
	name  string

	mu       sync.Mutex
	buffer   []byte
	uploaded bool
}

var (
	_ gofuse.FileWriter   = (*writeHandle)(nil)
	_ gofuse.FileFlusher  = (*writeHandle)(nil)
	_ gofuse.FileReleaser = (*writeHandle)(nil)
)

func (h *writeHandle) size() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint64(len(h.buffer))
}

func (h *writeHandle) Write(_ context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.uploaded {
		return 0, syscall.EROFS
	}
	end := off + int64(len(data))
	if end > int64(len(h.buffer)) {
		grown := make([]byte, end)
		copy(grown, h.buffer)
		h.buffer = grown
	}
	copy(h.buffer[off:], data)
	return uint32(len(data)), 0
}

// Flush uploads the buffered content. It is called for every close of a
// duplicated descriptor; only the first call uploads.
func (h *writeHandle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.uploaded {
		return 0
	}
	_, err := h.state.drive.UploadResource(ctx, h.state.user, h.dir, []webdrive.UploadFile{{
		Name:    h.name,
		Size:    int64(len(h.buffer)),
		Content: bytes.NewReader(h.buffer),
	}})
	if err != nil {
		logger := util.GetLogger("Mount.Flush")
		logger.Error().Err(err).Stringer("user", h.state.user).Str("dir", h.dir).Str("name", h.name).Msg("Failed to upload file")
		return Errno(err)
	}
	h.uploaded = true
	return 0
}

func (h *writeHandle) Release(_ context.Context) syscall.Errno {
	return 0
}
