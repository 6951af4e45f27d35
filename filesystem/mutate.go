package filesystem

import (
	"context"
	"fmt"
	"strings"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/internal/paths"
	"github.com/brettbedarf/webdrive/internal/util"
)

// CreateUserNamespace puts the root marker of user. Calling it again for an
// existing namespace is a no-op.
func (fs *FileSystem) CreateUserNamespace(ctx context.Context, user webdrive.UserID) error {
	logger := util.GetLogger("FileSystem.CreateUserNamespace")

	if !user.Valid() {
		return webdrive.NewError(webdrive.InvalidPath, "", fmt.Errorf("invalid user id %s", user))
	}
	made, err := fs.ensureMarker(ctx, user, "")
	if err != nil {
		logger.Error().Err(err).Stringer("user", user).Msg("Failed to create user namespace")
		return err
	}
	if made {
		logger.Info().Stringer("user", user).Str("prefix", fs.tr.Prefix(user)).Msg("Created user namespace")
	}
	return nil
}

// CreateDirectory creates the single directory at path inside an existing
// parent directory.
func (fs *FileSystem) CreateDirectory(ctx context.Context, user webdrive.UserID, path string) (webdrive.Resource, error) {
	logger := util.GetLogger("FileSystem.CreateDirectory")

	if err := paths.ValidatePath(path); err != nil {
		return webdrive.Resource{}, err
	}
	if !paths.IsDirectory(path) {
		return webdrive.Resource{}, webdrive.NewError(webdrive.NotADirectory, path, nil)
	}
	if err := paths.ValidateNames(path); err != nil {
		return webdrive.Resource{}, err
	}

	ok, err := fs.exists(ctx, user, path)
	if err != nil {
		return webdrive.Resource{}, err
	}
	if ok {
		return webdrive.Resource{}, webdrive.NewError(webdrive.ResourceAlreadyExists, path, nil)
	}
	if err := fs.requireDirectory(ctx, user, paths.Parent(path)); err != nil {
		return webdrive.Resource{}, err
	}

	info, err := fs.store.Put(ctx, fs.cfg.Bucket, fs.key(user, path), strings.NewReader(""), 0)
	if err != nil {
		logger.Error().Err(err).Stringer("user", user).Str("path", path).Msg("Failed to create directory")
		return webdrive.Resource{}, webdrive.NewError(webdrive.DirectoryCreationFailed, path, err)
	}
	logger.Debug().Stringer("user", user).Str("path", path).Msg("Created directory")
	return paths.Resource(path, info), nil
}

// DeleteResource deletes the file at path, or the directory at path with
// everything below it. Directory deletion is best effort: the report lists
// every key and a *webdrive.PartialError is returned when any of them failed.
func (fs *FileSystem) DeleteResource(ctx context.Context, user webdrive.UserID, path string) (*Report, error) {
	logger := util.GetLogger("FileSystem.DeleteResource")

	if err := paths.ValidatePath(path); err != nil {
		return nil, err
	}
	ok, err := fs.exists(ctx, user, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, webdrive.NewError(webdrive.ResourceNotFound, path, nil)
	}

	plan := newPlan(PlanDelete, user)
	if paths.IsDirectory(path) {
		plan.Deletes, err = fs.subtree(ctx, user, path)
		if err != nil {
			return nil, err
		}
	} else {
		plan.Deletes = []string{path}
	}

	report := fs.execute(ctx, plan)
	if err := report.err(plan.Op); err != nil {
		logger.Error().Err(err).Stringer("user", user).Str("path", path).Msg("Delete incomplete")
		return report, err
	}
	logger.Debug().Stringer("user", user).Str("path", path).Int("keys", len(plan.Deletes)).Msg("Deleted resource")
	return report, nil
}

// MoveResource moves the file or directory at from to to. Both must be of the
// same kind. Objects are copied inside the backend and the originals are
// deleted only once every copy succeeded.
func (fs *FileSystem) MoveResource(ctx context.Context, user webdrive.UserID, from, to string) (*Report, error) {
	logger := util.GetLogger("FileSystem.MoveResource")

	plan, err := fs.PlanMove(ctx, user, from, to)
	if err != nil {
		return nil, err
	}
	if parent := paths.Parent(to); parent != "" {
		if _, err := fs.EnsureDirectoryChain(ctx, user, parent); err != nil {
			return nil, err
		}
	}

	report := fs.execute(ctx, plan)
	if err := report.err(plan.Op); err != nil {
		logger.Error().Err(err).Stringer("user", user).Str("from", from).Str("to", to).Msg("Move incomplete")
		return report, err
	}
	logger.Debug().Stringer("user", user).Str("from", from).Str("to", to).Int("keys", len(plan.Copies)).Msg("Moved resource")
	return report, nil
}

// PlanMove validates a move and computes its steps without touching the
// destination.
func (fs *FileSystem) PlanMove(ctx context.Context, user webdrive.UserID, from, to string) (*Plan, error) {
	if err := paths.ValidatePath(from); err != nil {
		return nil, err
	}
	if err := paths.ValidatePath(to); err != nil {
		return nil, err
	}
	if err := paths.ValidateMovePair(from, to); err != nil {
		return nil, err
	}
	if paths.Kind(from) != paths.Kind(to) {
		return nil, webdrive.NewError(webdrive.NotADirectory, to,
			fmt.Errorf("cannot move a %s onto a %s path", paths.Kind(from), paths.Kind(to)))
	}
	if err := paths.ValidateNames(to); err != nil {
		return nil, err
	}

	ok, err := fs.exists(ctx, user, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, webdrive.NewError(webdrive.ResourceNotFound, from, nil)
	}
	ok, err = fs.exists(ctx, user, to)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, webdrive.NewError(webdrive.ResourceAlreadyExists, to, nil)
	}

	plan := newPlan(PlanMove, user)
	sources := []string{from}
	if paths.IsDirectory(from) {
		if sources, err = fs.subtree(ctx, user, from); err != nil {
			return nil, err
		}
	}
	for _, src := range sources {
		plan.Copies = append(plan.Copies, Step{Src: src, Dst: paths.Rebase(src, from, to)})
	}
	plan.Deletes = sources
	return plan, nil
}
