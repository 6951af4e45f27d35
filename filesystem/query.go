package filesystem

import (
	"context"
	"errors"
	"io"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/internal/paths"
	"github.com/brettbedarf/webdrive/internal/util"
)

// validateTarget accepts "" as the user root and otherwise runs ValidatePath
func validateTarget(path string) error {
	if path == "" {
		return nil
	}
	return paths.ValidatePath(path)
}

// GetResource returns the metadata of path. The empty path is the user's root.
func (fs *FileSystem) GetResource(ctx context.Context, user webdrive.UserID, path string) (webdrive.Resource, error) {
	if err := validateTarget(path); err != nil {
		return webdrive.Resource{}, err
	}
	info, err := fs.store.Stat(ctx, fs.cfg.Bucket, fs.key(user, path))
	if isNotFound(err) {
		return webdrive.Resource{}, webdrive.NewError(webdrive.ResourceNotFound, path, nil)
	}
	if err != nil {
		return webdrive.Resource{}, webdrive.StorageError(webdrive.OpStat, path, err)
	}
	return paths.Resource(path, info), nil
}

// OpenResource opens the file at path for reading. The caller must close the
// returned stream.
func (fs *FileSystem) OpenResource(ctx context.Context, user webdrive.UserID, path string) (*webdrive.ResourceStream, error) {
	if err := paths.ValidatePath(path); err != nil {
		return nil, err
	}
	if paths.IsDirectory(path) {
		return nil, webdrive.NewError(webdrive.InvalidPath, path, errors.New("cannot open a directory"))
	}
	rc, info, err := fs.store.Get(ctx, fs.cfg.Bucket, fs.key(user, path))
	if isNotFound(err) {
		return nil, webdrive.NewError(webdrive.ResourceNotFound, path, nil)
	}
	if err != nil {
		return nil, webdrive.StorageError(webdrive.OpRead, path, err)
	}
	return &webdrive.ResourceStream{Resource: paths.Resource(path, info), ReadCloser: rc}, nil
}

// ReadAt reads up to length bytes of the file at path starting at offset.
// Reads past the end return fewer bytes, possibly none.
func (fs *FileSystem) ReadAt(ctx context.Context, user webdrive.UserID, path string, offset, length int64) ([]byte, error) {
	rc, err := fs.store.GetRange(ctx, fs.cfg.Bucket, fs.key(user, path), offset, length)
	if isNotFound(err) {
		return nil, webdrive.NewError(webdrive.ResourceNotFound, path, nil)
	}
	if err != nil {
		return nil, webdrive.StorageError(webdrive.OpRead, path, err)
	}
	defer rc.Close()

	buf, err := io.ReadAll(rc)
	if err != nil {
		return nil, webdrive.StorageError(webdrive.OpRead, path, err)
	}
	return buf, nil
}

// Exists reports whether path is present. A missing path is not an error.
func (fs *FileSystem) Exists(ctx context.Context, user webdrive.UserID, path string) (bool, error) {
	if err := validateTarget(path); err != nil {
		return false, err
	}
	return fs.exists(ctx, user, path)
}

// ListNames returns the object keys below prefix
func (fs *FileSystem) ListNames(ctx context.Context, user webdrive.UserID, prefix string, recursive bool) ([]string, error) {
	if err := validateTarget(prefix); err != nil {
		return nil, err
	}
	var keys []string
	for info, err := range fs.store.List(ctx, fs.cfg.Bucket, fs.key(user, prefix), recursive) {
		if err != nil {
			return nil, webdrive.StorageError(webdrive.OpList, prefix, err)
		}
		keys = append(keys, info.Key)
	}
	return keys, nil
}

// ListDirectory returns the immediate children of the directory at path, the
// user's root when path is empty. The directory's own marker is not included.
func (fs *FileSystem) ListDirectory(ctx context.Context, user webdrive.UserID, path string) ([]webdrive.Resource, error) {
	logger := util.GetLogger("FileSystem.ListDirectory")

	if err := validateTarget(path); err != nil {
		return nil, err
	}
	if err := fs.requireDirectory(ctx, user, path); err != nil {
		return nil, err
	}

	var children []webdrive.Resource
	for info, err := range fs.store.List(ctx, fs.cfg.Bucket, fs.key(user, path), false) {
		if err != nil {
			return nil, webdrive.StorageError(webdrive.OpList, path, err)
		}
		p := fs.tr.ToUserPath(user, info.Key)
		if p == path {
			continue
		}
		children = append(children, paths.Resource(p, info))
	}
	logger.Trace().Stringer("user", user).Str("path", path).Int("children", len(children)).Msg("Listed directory")
	return children, nil
}
