package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
)

// acquirePDF walks the pages in order. A page whose text layer is empty after
// trimming is rasterized into a call-scoped temp dir and OCR'd. The temp dir is
// removed on every return path.
func (e *Extractor) acquirePDF(ctx context.Context, path string) (*Result, error) {
	pages, err := e.counter.PageCount(path)
	if err != nil {
		return nil, domain.NewExtractionError(-1, fmt.Errorf("counting pages: %w", err))
	}
	if pages <= 0 {
		return nil, domain.NewExtractionError(-1, fmt.Errorf("document has no pages"))
	}
	if e.cfg.MaxPages > 0 && pages > e.cfg.MaxPages {
		e.logger.WithFields(logrus.Fields{
			"pages":     pages,
			"max_pages": e.cfg.MaxPages,
		}).Warn("Truncating PDF to configured page limit")
		pages = e.cfg.MaxPages
	}

	tmpDir, err := os.MkdirTemp("", "zoonotic-raster-*")
	if err != nil {
		return nil, domain.NewExtractionError(-1, fmt.Errorf("creating raster dir: %w", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.WithError(rmErr).WithField("dir", tmpDir).Warn("Failed to remove raster dir")
		}
	}()

	var b strings.Builder
	methods := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewExtractionError(page-1, err)
		}

		txt, err := e.pdfPageText(ctx, path, page)
		if err != nil {
			return nil, domain.NewExtractionError(page-1, err)
		}
		method := METHOD_PDF_TEXT
		if strings.TrimSpace(txt) == "" {
			txt, err = e.pdfPageOCR(ctx, path, page, tmpDir)
			if err != nil {
				return nil, domain.NewExtractionError(page-1, err)
			}
			method = METHOD_PDF_OCR
		}
		b.WriteString(txt)
		methods = append(methods, method)
	}

	return &Result{
		Text:        b.String(),
		Method:      summarizeMethods(methods),
		Pages:       pages,
		PageMethods: methods,
	}, nil
}

func (e *Extractor) pdfPageText(ctx context.Context, path string, page int) (string, error) {
	p := strconv.Itoa(page)
	// pdftotext -f N -l N -layout -enc UTF-8 -eol unix <pdf> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext,
		"-f", p, "-l", p, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}

func (e *Extractor) pdfPageOCR(ctx context.Context, path string, page int, tmpDir string) (string, error) {
	p := strconv.Itoa(page)
	prefix := filepath.Join(tmpDir, "page"+p)
	// pdftoppm -f N -l N -r DPI -png <pdf> <prefix>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-f", p, "-l", p, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(errb)))
	}

	// pdftoppm zero-pads the page suffix depending on document length
	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no image for page %d", page)
	}
	sort.Strings(matches)

	return e.tesseract(ctx, matches[0])
}

func summarizeMethods(methods []string) string {
	if len(methods) == 0 {
		return METHOD_PDF_TEXT
	}
	first := methods[0]
	for _, m := range methods[1:] {
		if m != first {
			return METHOD_MIXED
		}
	}
	return first
}
