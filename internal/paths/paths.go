// Package paths holds the path algebra of the drive: translation between user
// paths and object keys, classification of files vs directories, and input
// validation. Nothing here performs I/O.
package paths

import (
	"fmt"
	"strings"

	"github.com/brettbedarf/webdrive"
)

// Separator between path elements
const Separator = "/"

// Translator maps user paths into the per-user key namespace of the bucket.
// It is immutable and safe for concurrent use.
type Translator struct {
	pattern string // fmt pattern with a single %d verb for the UserID
}

// NewTranslator builds a Translator from a namespace pattern such as
// "user-%d-files/". The pattern must produce a "/"-terminated prefix.
func NewTranslator(pattern string) (*Translator, error) {
	if strings.Count(pattern, "%d") != 1 || strings.Count(pattern, "%") != 1 {
		return nil, fmt.Errorf("namespace pattern %q must contain exactly one %%d verb", pattern)
	}
	if !strings.HasSuffix(pattern, Separator) {
		return nil, fmt.Errorf("namespace pattern %q must end with %q", pattern, Separator)
	}
	return &Translator{pattern: pattern}, nil
}

// Prefix returns the namespace prefix of user, which is also the key of the
// user's root directory marker.
func (t *Translator) Prefix(user webdrive.UserID) string {
	return fmt.Sprintf(t.pattern, int64(user))
}

// ToObjectKey concatenates the namespace prefix and path
func (t *Translator) ToObjectKey(user webdrive.UserID, path string) string {
	return t.Prefix(user) + path
}

// ToUserPath strips the namespace prefix from key. Keys outside the namespace
// are returned unchanged.
func (t *Translator) ToUserPath(user webdrive.UserID, key string) string {
	return strings.TrimPrefix(key, t.Prefix(user))
}

// IsDirectory reports whether path denotes a directory
func IsDirectory(path string) bool {
	return len(path) > 1 && strings.HasSuffix(path, Separator)
}

// Kind classifies path. The empty path is the user's root directory.
func Kind(path string) webdrive.ResourceKind {
	if path == "" || IsDirectory(path) {
		return webdrive.KindDirectory
	}
	return webdrive.KindFile
}

// AsDirectory returns path with a trailing separator
func AsDirectory(path string) string {
	if path == "" || strings.HasSuffix(path, Separator) {
		return path
	}
	return path + Separator
}

// Join appends name to the directory dir
func Join(dir, name string) string {
	return AsDirectory(dir) + strings.TrimPrefix(name, Separator)
}

// Info is a path split at its last separator
type Info struct {
	ParentPath  string // "" when the parent is the root
	DisplayName string // keeps the trailing "/" of directories
}

// Split derives the parent path and display name of path
func Split(path string) Info {
	trimmed := strings.TrimSuffix(path, Separator)
	idx := strings.LastIndex(trimmed, Separator)
	info := Info{DisplayName: path[idx+1:]}
	if idx >= 0 {
		info.ParentPath = trimmed[:idx+1]
	}
	return info
}

// Parent returns the directory containing path, "" for top-level entries
func Parent(path string) string {
	return Split(path).ParentPath
}

// Ancestors returns every "/"-terminated prefix of path, shortest first,
// including path itself when it is a directory.
//
//	Ancestors("a/b/c.txt") == ["a/", "a/b/"]
//	Ancestors("a/b/")      == ["a/", "a/b/"]
//	Ancestors("c.txt")     == []
func Ancestors(path string) []string {
	var out []string
	for i := 0; i < len(path); i++ {
		if path[i] == '/' && i > 0 {
			out = append(out, path[:i+1])
		}
	}
	return out
}

// Depth is the number of separators in path
func Depth(path string) int {
	return strings.Count(path, Separator)
}

// Rebase substitutes the prefix from of key with to
func Rebase(key, from, to string) string {
	return to + strings.TrimPrefix(key, from)
}

// Resource builds the metadata variant for the user path p
func Resource(p string, info webdrive.ObjectInfo) webdrive.Resource {
	split := Split(p)
	r := webdrive.Resource{
		Path:         p,
		ParentPath:   split.ParentPath,
		Name:         split.DisplayName,
		Kind:         Kind(p),
		LastModified: info.LastModified,
	}
	if r.Kind == webdrive.KindFile && info.Size > 0 {
		r.Size = uint64(info.Size)
	}
	return r
}
