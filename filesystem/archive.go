package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/config"
	"github.com/brettbedarf/webdrive/internal/paths"
	"github.com/brettbedarf/webdrive/internal/util"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// RootArchiveName is the download name of a whole drive
const RootArchiveName = "files.zip"

// StreamDirectory returns a zip of everything below dirPath ("" for the whole
// drive). The archive is produced lazily while the caller reads; closing the
// reader early stops the producer. A failure part way through surfaces as a
// read error wrapping ArchiveCreationFailed.
func (fs *FileSystem) StreamDirectory(ctx context.Context, user webdrive.UserID, dirPath string) (io.ReadCloser, error) {
	if err := validateTarget(dirPath); err != nil {
		return nil, err
	}
	if err := fs.requireDirectory(ctx, user, dirPath); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go fs.writeArchive(ctx, user, dirPath, pw)
	return pr, nil
}

func (fs *FileSystem) writeArchive(ctx context.Context, user webdrive.UserID, dirPath string, pw *io.PipeWriter) {
	logger := util.GetLogger("FileSystem.writeArchive")

	var (
		failure error
		members int
		written int64
	)
	scope := &closeScope{}
	defer scope.Close()
	scope.AddClose(func() { pw.CloseWithError(failure) })
	scope.AddClose(func() {
		if errors.Is(failure, io.ErrClosedPipe) {
			logger.Debug().Stringer("user", user).Str("dir", dirPath).Msg("Archive reader closed early")
			return
		}
		if failure != nil {
			logger.Error().Err(failure).Stringer("user", user).Str("dir", dirPath).Msg("Archive aborted")
			return
		}
		logger.Debug().
			Stringer("user", user).
			Str("dir", dirPath).
			Int("members", members).
			Str("size", util.Bytes(written)).
			Msg("Archive complete")
	})

	zw := zip.NewWriter(pw)
	method := zip.Store
	if fs.cfg.ArchiveMethod == config.ArchiveDeflate {
		method = zip.Deflate
		level := fs.cfg.ArchiveLevel
		zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, level)
		})
	}

	for info, err := range fs.store.List(ctx, fs.cfg.Bucket, fs.key(user, dirPath), true) {
		if err != nil {
			failure = webdrive.NewError(webdrive.ArchiveCreationFailed, dirPath, webdrive.StorageError(webdrive.OpList, dirPath, err))
			return
		}
		p := fs.tr.ToUserPath(user, info.Key)
		name := strings.TrimPrefix(p, dirPath)
		if name == "" {
			continue
		}

		if paths.IsDirectory(p) {
			if !fs.cfg.ArchiveDirEntries {
				continue
			}
			if _, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store, Modified: info.LastModified}); err != nil {
				failure = webdrive.NewError(webdrive.ArchiveCreationFailed, name, err)
				return
			}
			continue
		}

		n, err := fs.archiveMember(ctx, zw, info, name, method)
		if err != nil {
			failure = webdrive.NewError(webdrive.ArchiveCreationFailed, name, err)
			return
		}
		members++
		written += n
	}

	if err := zw.Close(); err != nil {
		failure = webdrive.NewError(webdrive.ArchiveCreationFailed, dirPath, err)
	}
}

// archiveMember copies one object into the archive as name
func (fs *FileSystem) archiveMember(ctx context.Context, zw *zip.Writer, info webdrive.ObjectInfo, name string, method uint16) (int64, error) {
	rc, _, err := fs.store.Get(ctx, fs.cfg.Bucket, info.Key)
	if err != nil {
		return 0, webdrive.StorageError(webdrive.OpRead, name, err)
	}
	defer rc.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: info.LastModified})
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, rc)
	if err != nil {
		return n, fmt.Errorf("writing member: %w", err)
	}
	return n, nil
}

// PrepareDownload opens path for download as an attachment. A file is served
// as is; a directory is zipped on the fly into "<name>.zip", the user's root
// into [RootArchiveName].
func (fs *FileSystem) PrepareDownload(ctx context.Context, user webdrive.UserID, p string) (*webdrive.Download, error) {
	logger := util.GetLogger("FileSystem.PrepareDownload")

	if p == "" || paths.IsDirectory(p) {
		body, err := fs.StreamDirectory(ctx, user, p)
		if err != nil {
			return nil, err
		}
		filename := RootArchiveName
		if p != "" {
			filename = strings.TrimSuffix(paths.Split(p).DisplayName, paths.Separator) + ".zip"
		}
		logger.Debug().Stringer("user", user).Str("path", p).Str("filename", filename).Msg("Streaming directory archive")
		return &webdrive.Download{
			Body:               body,
			Filename:           filename,
			ContentDisposition: attachment(filename),
			ContentType:        "application/zip",
			Size:               -1,
		}, nil
	}

	stream, err := fs.OpenResource(ctx, user, p)
	if err != nil {
		return nil, err
	}
	logger.Debug().Stringer("user", user).Str("path", p).Str("size", util.Bytes(int64(stream.Size))).Msg("Streaming file")
	return &webdrive.Download{
		Body:               stream.ReadCloser,
		Filename:           stream.Name,
		ContentDisposition: attachment(stream.Name),
		ContentType:        contentType(stream.Name),
		Size:               int64(stream.Size),
	}, nil
}

func attachment(filename string) string {
	if d := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); d != "" {
		return d
	}
	// names FormatMediaType cannot encode
	return "attachment"
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
