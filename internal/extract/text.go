package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// PageBreak separates pages in plain text documents.
const PageBreak = "\f"

// Text reads a UTF-8 text file. Form feeds split pages; a file without form
// feeds is a single page.
type Text struct{}

// ExtractPages reads the whole file and splits it on PageBreak.
func (Text) ExtractPages(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.Split(string(data), PageBreak), nil
}
