package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentrag/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestText_SplitsOnFormFeed(t *testing.T) {
	path := writeFile(t, "patent.txt", "Abstract\nA blade.\fClaims\n1. A blade.\f")

	pages, err := Text{}.ExtractPages(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, []string{"Abstract\nA blade.", "Claims\n1. A blade.", ""}, pages)
}

func TestText_SinglePage(t *testing.T) {
	path := writeFile(t, "note.txt", "just one page")

	pages, err := Text{}.ExtractPages(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, []string{"just one page"}, pages)
}

func TestText_MissingFile(t *testing.T) {
	_, err := Text{}.ExtractPages(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestRegistry_DispatchesByExtension(t *testing.T) {
	r := NewRegistry()
	path := writeFile(t, "UPPER.TXT", "page one\fpage two")

	assert.True(t, r.Supports(path))
	assert.Equal(t, []string{".pdf", ".txt"}, r.Extensions())

	pages, err := r.ExtractPages(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestRegistry_Unsupported(t *testing.T) {
	r := NewRegistry()
	path := writeFile(t, "scan.tiff", "binary")

	assert.False(t, r.Supports(path))
	_, err := r.ExtractPages(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrUnsupportedDocument)
}

type fixedExtractor []string

func (f fixedExtractor) ExtractPages(context.Context, string) ([]string, error) { return f, nil }

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("MD", fixedExtractor{"# Title"})

	pages, err := r.ExtractPages(context.Background(), "readme.md")

	require.NoError(t, err)
	assert.Equal(t, []string{"# Title"}, pages)
}

func TestPDF_InvalidFile(t *testing.T) {
	path := writeFile(t, "broken.pdf", "not a pdf")

	_, err := PDF{}.ExtractPages(context.Background(), path)

	assert.Error(t, err)
}

func TestSetLicenseKey_EmptyIsNoop(t *testing.T) {
	assert.NoError(t, SetLicenseKey(""))
}
