package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"patentrag/internal/domain"
)

// Registry dispatches extraction by file extension.
type Registry struct {
	byExt map[string]domain.Extractor
}

// NewRegistry returns a registry with the PDF and plain text extractors.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]domain.Extractor)}
	r.Register(".pdf", PDF{})
	r.Register(".txt", Text{})
	return r
}

// Register binds an extension (with or without the leading dot) to an extractor.
func (r *Registry) Register(ext string, e domain.Extractor) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.byExt[ext] = e
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ExtractPages returns the ordered page texts of the document at path.
func (r *Registry) ExtractPages(ctx context.Context, path string) ([]string, error) {
	e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedDocument, filepath.Base(path))
	}
	return e.ExtractPages(ctx, path)
}

var _ domain.Extractor = (*Registry)(nil)
