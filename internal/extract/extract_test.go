package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/lorebase/lorebase/internal/pkg/errors"
)

func TestPagesRejectsUnknownExtension(t *testing.T) {
	_, err := Pages("document.xyz")
	require.ErrorIs(t, err, appErr.ErrUnsupportedFile)
}

func TestEstimatePages(t *testing.T) {
	require.Nil(t, estimatePages(""))
	require.Nil(t, estimatePages("   \n\t "))

	one := estimatePages("just a few words")
	require.Len(t, one, 1)
	require.Equal(t, 1, one[0].Number)
	require.Equal(t, "just a few words", one[0].Text)

	many := estimatePages(strings.Repeat("word ", WordsPerPage+10))
	require.Len(t, many, 2)
	require.Equal(t, 1, many[0].Number)
	require.Equal(t, 2, many[1].Number)
	require.Len(t, strings.Fields(many[0].Text), WordsPerPage)
	require.Len(t, strings.Fields(many[1].Text), 10)
}

func TestTextPages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello paginated world"), 0o644))

	pages, err := Pages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, "hello paginated world", pages[0].Text)
}

func TestMarkdownPagesStripsSyntax(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	content := "# Heading\n\nSome *emphasized* body text.\n\n- item one\n- item two\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	pages, err := Pages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.NotContains(t, pages[0].Text, "#")
	require.NotContains(t, pages[0].Text, "*")
	require.Contains(t, pages[0].Text, "Heading")
	require.Contains(t, pages[0].Text, "emphasized")
	require.Contains(t, pages[0].Text, "item two")
}
