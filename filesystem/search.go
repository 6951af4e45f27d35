package filesystem

import (
	"context"
	"errors"
	"strings"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/internal/paths"
	"github.com/brettbedarf/webdrive/internal/util"
)

// SearchResource returns every resource in the user's drive whose path
// contains query, ignoring case. Results come in listing order.
func (fs *FileSystem) SearchResource(ctx context.Context, user webdrive.UserID, query string) ([]webdrive.Resource, error) {
	logger := util.GetLogger("FileSystem.SearchResource")

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, webdrive.NewError(webdrive.InvalidSearchQuery, "", errors.New("query is blank"))
	}

	var found []webdrive.Resource
	for info, err := range fs.store.List(ctx, fs.cfg.Bucket, fs.tr.Prefix(user), true) {
		if err != nil {
			return nil, webdrive.StorageError(webdrive.OpList, "", err)
		}
		p := fs.tr.ToUserPath(user, info.Key)
		if p == "" {
			continue
		}
		if strings.Contains(strings.ToLower(p), needle) {
			found = append(found, paths.Resource(p, info))
		}
	}
	logger.Debug().Stringer("user", user).Str("query", query).Int("matches", len(found)).Msg("Searched drive")
	return found, nil
}
