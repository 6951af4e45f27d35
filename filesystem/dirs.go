package filesystem

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/internal/paths"
	"github.com/brettbedarf/webdrive/internal/util"
	"golang.org/x/sync/errgroup"
)

// EnsureDirectoryChain creates the marker of every directory on the way to
// path, and of path itself when it is a directory. It is equivalent to
// `mkdir -p` and returns the user paths it had to create.
func (fs *FileSystem) EnsureDirectoryChain(ctx context.Context, user webdrive.UserID, path string) ([]string, error) {
	return fs.ensureDirs(ctx, user, paths.Ancestors(path))
}

// ensureDirs creates the missing markers among dirs. Levels are handled
// shallowest first so a parent marker always exists before its children;
// markers on one level are created concurrently. No rollback on failure.
func (fs *FileSystem) ensureDirs(ctx context.Context, user webdrive.UserID, dirs []string) ([]string, error) {
	logger := util.GetLogger("FileSystem.ensureDirs")

	levels := map[int][]string{}
	seen := map[string]bool{}
	for _, d := range dirs {
		if seen[d] {
			continue
		}
		seen[d] = true
		depth := paths.Depth(d)
		levels[depth] = append(levels[depth], d)
	}

	var (
		mu      sync.Mutex
		created []string
	)
	for _, depth := range slices.Sorted(maps.Keys(levels)) {
		var g errgroup.Group
		g.SetLimit(fs.cfg.DirConcurrency)
		for _, dir := range levels[depth] {
			g.Go(func() error {
				made, err := fs.ensureMarker(ctx, user, dir)
				if err != nil {
					return err
				}
				if made {
					mu.Lock()
					created = append(created, dir)
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			logger.Error().Err(err).Stringer("user", user).Strs("created", created).Msg("Failed to create directory chain")
			slices.Sort(created)
			return created, err
		}
	}

	slices.Sort(created)
	if len(created) > 0 {
		logger.Debug().Stringer("user", user).Strs("created", created).Msg("Created directory markers")
	}
	return created, nil
}

// ensureMarker puts the zero-byte marker of dir unless it already exists
func (fs *FileSystem) ensureMarker(ctx context.Context, user webdrive.UserID, dir string) (bool, error) {
	key := fs.key(user, dir)
	ok, err := fs.store.Exists(ctx, fs.cfg.Bucket, key)
	if err != nil {
		return false, webdrive.NewError(webdrive.DirectoryCreationFailed, dir, err)
	}
	if ok {
		return false, nil
	}
	if _, err := fs.store.Put(ctx, fs.cfg.Bucket, key, strings.NewReader(""), 0); err != nil {
		return false, webdrive.NewError(webdrive.DirectoryCreationFailed, dir, err)
	}
	return true, nil
}
