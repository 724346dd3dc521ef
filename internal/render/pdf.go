// Package render turns one page of a source document into a standalone
// blob the vision service can read. Splitting a PDF into single-page PDFs
// preserves the page's full visual content without rasterizing.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const PageMIMEType = "application/pdf"

type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer { return &PDFRenderer{} }

// PageCount reports the number of pages in the source file.
func (r *PDFRenderer) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("page count %s: %w", filepath.Base(path), err)
	}
	return n, nil
}

// SplitPages writes one single-page PDF per page of src into outDir and
// returns the per-page file paths ordered by page number (1-based page N
// at index N-1).
func (r *PDFRenderer) SplitPages(src, outDir string) ([]string, error) {
	pageCount, err := r.PageCount(src)
	if err != nil {
		return nil, err
	}
	if err := api.SplitFile(src, outDir, 1, nil); err != nil {
		return nil, fmt.Errorf("split %s: %w", filepath.Base(src), err)
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	paths := make([]string, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("%s_%d.pdf", base, i))
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("split output missing page %d: %w", i, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
