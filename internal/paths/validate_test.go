package paths

import (
	"errors"
	"testing"

	"github.com/brettbedarf/webdrive"
	"github.com/stretchr/testify/assert"
)

func TestValidatePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		wantErr bool
	}{
		{"a/b.txt", false},
		{"a/b/", false},
		{"file name.txt", false},
		{"", true},
		{"   ", true},
		{"a/../b", true},
		{"..", true},
		{"a//b", true},
		{"/a", true},
	}
	for _, tt := range tests {
		err := ValidatePath(tt.path)
		if tt.wantErr {
			assert.ErrorIs(t, err, webdrive.ErrInvalidPath, "path %q", tt.path)
		} else {
			assert.NoError(t, err, "path %q", tt.path)
		}
	}
}

func TestValidateFileName(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateFileName("report (final).pdf"))
	for _, name := range []string{"", " ", "a/b", "a<b", "a>b", "a:b", `a"b`, "a|b", "a?b", "a*b"} {
		assert.ErrorIs(t, ValidateFileName(name), webdrive.ErrInvalidPath, "name %q", name)
	}
}

func TestValidateNames_ReportsFullPath(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateNames("a/b/c.txt"))
	assert.NoError(t, ValidateNames("a/b/"))

	err := ValidateNames("a/b?/c.txt")
	var e *webdrive.Error
	if assert.True(t, errors.As(err, &e)) {
		assert.Equal(t, webdrive.InvalidPath, e.Kind)
		assert.Equal(t, "a/b?/c.txt", e.Path)
	}
}

func TestValidateMovePair(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateMovePair("a/b.txt", "c/b.txt"))
	assert.NoError(t, ValidateMovePair("docs/", "archive/"))
	assert.NoError(t, ValidateMovePair("docs/", "docs2/"), "sibling with shared name prefix is allowed")

	assert.ErrorIs(t, ValidateMovePair("a.txt", "a.txt"), webdrive.ErrInvalidPath)
	assert.ErrorIs(t, ValidateMovePair("docs/", "docs/sub/"), webdrive.ErrInvalidPath)
}
