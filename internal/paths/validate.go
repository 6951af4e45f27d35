package paths

import (
	"errors"
	"strings"

	"github.com/brettbedarf/webdrive"
)

const illegalNameChars = `<>:"|?*\`

// ValidatePath rejects malformed user paths before any I/O
func ValidatePath(path string) error {
	switch {
	case strings.TrimSpace(path) == "":
		return invalid(path, "path is blank")
	case strings.Contains(path, ".."):
		return invalid(path, "path traversal is not allowed")
	case strings.Contains(path, "//"):
		return invalid(path, "path contains an empty element")
	case strings.HasPrefix(path, Separator):
		return invalid(path, "path must be relative to the drive root")
	}
	return nil
}

// ValidateFileName rejects a single path element that cannot be stored
func ValidateFileName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return invalid(name, "name is blank")
	case strings.Contains(name, Separator):
		return invalid(name, "name contains a path separator")
	case strings.ContainsAny(name, illegalNameChars):
		return invalid(name, "name contains an illegal character")
	}
	return nil
}

// ValidateNames runs [ValidateFileName] on every element of path
func ValidateNames(path string) error {
	for _, elem := range strings.Split(strings.TrimSuffix(path, Separator), Separator) {
		if err := ValidateFileName(elem); err != nil {
			var e *webdrive.Error
			if errors.As(err, &e) {
				e.Path = path
			}
			return err
		}
	}
	return nil
}

// ValidateMovePair rejects moves onto the same path or into the moved
// directory's own subtree.
func ValidateMovePair(from, to string) error {
	if from == to {
		return invalid(to, "source and destination are the same")
	}
	if IsDirectory(from) && strings.HasPrefix(to, AsDirectory(from)) {
		return invalid(to, "cannot move a directory into itself")
	}
	return nil
}

func invalid(path, reason string) error {
	return webdrive.NewError(webdrive.InvalidPath, path, errors.New(reason))
}
