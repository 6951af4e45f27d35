package filesystem

import (
	"context"
	"testing"

	"github.com/brettbedarf/webdrive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Search is case-insensitive substring match
func TestSearchResource_CaseInsensitive(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	seed(t, fs, testUser, "Document.txt", "image.jpg")

	found, err := fs.SearchResource(context.Background(), testUser, "doc")

	require.NoError(t, err)
	assert.Equal(t, []string{"Document.txt"}, resourcePaths(found))
}

func TestSearchResource_MatchesFullPath(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	seed(t, fs, testUser, "Reports/", "Reports/q1.pdf", "misc/REPORT-draft.md", "misc/other.txt")
	seed(t, fs, testUser+1, "reports/secret.pdf")

	found, err := fs.SearchResource(context.Background(), testUser, "  report ")

	require.NoError(t, err)
	assert.Equal(t, []string{"Reports/", "Reports/q1.pdf", "misc/REPORT-draft.md"}, resourcePaths(found))
	assert.True(t, found[0].IsDir())
}

func TestSearchResource_BlankQuery(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)

	for _, q := range []string{"", "   "} {
		_, err := fs.SearchResource(context.Background(), testUser, q)
		assert.ErrorIs(t, err, webdrive.ErrInvalidSearchQuery)
	}
}

func TestSearchResource_NoMatches(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	seed(t, fs, testUser, "a.txt")

	found, err := fs.SearchResource(context.Background(), testUser, "zzz")

	require.NoError(t, err)
	assert.Empty(t, found)
}
