package extract

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"patentrag/internal/domain"
)

// SetLicenseKey activates a metered unidoc license. Extraction without one
// runs in unlicensed mode.
func SetLicenseKey(key string) error {
	if key == "" {
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("setting unipdf license: %w", err)
	}
	return nil
}

// PDF extracts one text string per page. A page whose text cannot be
// extracted comes back empty so page numbers stay aligned.
type PDF struct{}

// ExtractPages reads the document at path page by page. Unreadable pages are
// reported as *domain.PageError values joined into the returned error, next
// to the pages that did extract.
func (PDF) ExtractPages(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, fmt.Errorf("parsing pdf %s: %w", path, err)
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("counting pages of %s: %w", path, err)
	}

	pages := make([]string, numPages)
	var pageErrs []error
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := pageText(reader, i)
		if err != nil {
			pageErrs = append(pageErrs, &domain.PageError{Page: i, Err: err})
			continue
		}
		pages[i-1] = text
	}
	return pages, errors.Join(pageErrs...)
}

func pageText(reader *model.PdfReader, n int) (string, error) {
	page, err := reader.GetPage(n)
	if err != nil {
		return "", fmt.Errorf("loading page: %w", err)
	}
	ex, err := extractor.New(page)
	if err != nil {
		return "", fmt.Errorf("preparing extractor: %w", err)
	}
	text, err := ex.ExtractText()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	return text, nil
}
