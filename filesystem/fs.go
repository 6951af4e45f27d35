// Package filesystem is the virtual filesystem layer of the drive. It turns
// hierarchical operations on user paths into flat operations on an
// [webdrive.ObjectStore].
package filesystem

import (
	"context"
	"errors"
	"fmt"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/config"
	"github.com/brettbedarf/webdrive/internal/paths"
	"github.com/brettbedarf/webdrive/internal/util"
)

// FileSystem exposes the drive operations for every user namespace of one
// bucket. It holds no mutable state and is safe for concurrent use.
type FileSystem struct {
	cfg   *config.Config
	store webdrive.ObjectStore
	tr    *paths.Translator
}

func NewFS(cfg *config.Config, store webdrive.ObjectStore) (*FileSystem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tr, err := paths.NewTranslator(cfg.NamespacePattern)
	if err != nil {
		return nil, err
	}
	return &FileSystem{cfg: cfg, store: store, tr: tr}, nil
}

// Init makes sure the configured bucket exists
func (fs *FileSystem) Init(ctx context.Context) error {
	logger := util.GetLogger("FileSystem.Init")
	if err := fs.store.EnsureBucket(ctx, fs.cfg.Bucket); err != nil {
		return fmt.Errorf("ensuring bucket %q: %w", fs.cfg.Bucket, err)
	}
	logger.Debug().Str("bucket", fs.cfg.Bucket).Msg("Bucket ready")
	return nil
}

func (fs *FileSystem) Config() *config.Config {
	return fs.cfg
}

func (fs *FileSystem) key(user webdrive.UserID, p string) string {
	return fs.tr.ToObjectKey(user, p)
}

// exists is the not-found tolerant existence check shared by every operation
func (fs *FileSystem) exists(ctx context.Context, user webdrive.UserID, p string) (bool, error) {
	ok, err := fs.store.Exists(ctx, fs.cfg.Bucket, fs.key(user, p))
	if err != nil {
		return false, webdrive.StorageError(webdrive.OpStat, p, err)
	}
	return ok, nil
}

// requireDirectory checks that dir ("" for the root) is an existing directory
func (fs *FileSystem) requireDirectory(ctx context.Context, user webdrive.UserID, dir string) error {
	if dir != "" && !paths.IsDirectory(dir) {
		return webdrive.NewError(webdrive.NotADirectory, dir, nil)
	}
	ok, err := fs.exists(ctx, user, dir)
	if err != nil {
		return err
	}
	if !ok {
		return webdrive.NewError(webdrive.DirectoryNotExist, dir, nil)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, webdrive.ErrObjectNotFound)
}
