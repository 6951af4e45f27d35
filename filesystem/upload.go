package filesystem

import (
	"context"
	"errors"
	"strings"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/internal/paths"
	"github.com/brettbedarf/webdrive/internal/util"
	"golang.org/x/sync/errgroup"
)

// UploadResource writes files below targetDir ("" for the user's root).
// The whole batch is rejected before any write when a target already exists
// or appears twice. Files are then written concurrently and independently; the
// returned resources are the ones that succeeded, in input order, and the
// error joins every per-file failure.
func (fs *FileSystem) UploadResource(ctx context.Context, user webdrive.UserID, targetDir string, files []webdrive.UploadFile) ([]webdrive.Resource, error) {
	logger := util.GetLogger("FileSystem.UploadResource")

	if targetDir != "" {
		if err := paths.ValidatePath(targetDir); err != nil {
			return nil, err
		}
		ok := paths.IsDirectory(targetDir)
		if ok {
			var err error
			if ok, err = fs.exists(ctx, user, targetDir); err != nil {
				return nil, err
			}
		}
		if !ok {
			return nil, webdrive.NewError(webdrive.DirectoryNotExist, targetDir, nil)
		}
	}

	targets := make([]string, len(files))
	for i, f := range files {
		if err := validateUploadName(f.Name); err != nil {
			return nil, err
		}
		targets[i] = targetDir + f.Name
	}

	// collisions, in input order
	seen := make(map[string]bool, len(targets))
	for _, target := range targets {
		if seen[target] {
			return nil, webdrive.NewError(webdrive.ResourceAlreadyExists, target, errors.New("duplicated in upload"))
		}
		seen[target] = true
		ok, err := fs.exists(ctx, user, target)
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, webdrive.NewError(webdrive.ResourceAlreadyExists, target, nil)
		}
	}

	var dirs []string
	for _, target := range targets {
		for _, dir := range paths.Ancestors(target) {
			if len(dir) > len(targetDir) {
				dirs = append(dirs, dir)
			}
		}
	}
	if _, err := fs.ensureDirs(ctx, user, dirs); err != nil {
		return nil, err
	}

	uploaded := make([]*webdrive.Resource, len(files))
	errs := make([]error, len(files))
	var g errgroup.Group
	g.SetLimit(fs.cfg.UploadConcurrency)
	for i, f := range files {
		body := f.Content
		if body == nil {
			// no content is an empty file
			body = strings.NewReader("")
		}
		g.Go(func() error {
			info, err := fs.store.Put(ctx, fs.cfg.Bucket, fs.key(user, targets[i]), body, f.Size)
			if err != nil {
				logger.Error().Err(err).Stringer("user", user).Str("path", targets[i]).Msg("Failed to upload file")
				errs[i] = webdrive.NewError(webdrive.ResourceUploadFailed, targets[i], err)
				return nil
			}
			r := paths.Resource(targets[i], info)
			uploaded[i] = &r
			logger.Debug().Stringer("user", user).Str("path", targets[i]).Str("size", util.Bytes(info.Size)).Msg("Uploaded file")
			return nil
		})
	}
	_ = g.Wait()

	out := make([]webdrive.Resource, 0, len(files))
	for _, r := range uploaded {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, errors.Join(errs...)
}

// validateUploadName checks a file name relative to the upload target
func validateUploadName(name string) error {
	if err := paths.ValidatePath(name); err != nil {
		return err
	}
	if strings.HasSuffix(name, paths.Separator) {
		return webdrive.NewError(webdrive.InvalidPath, name, errors.New("upload target must be a file"))
	}
	return paths.ValidateNames(name)
}
