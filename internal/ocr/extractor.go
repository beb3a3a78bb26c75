// Package ocr turns uploaded lab-report documents into text. Images go straight to
// tesseract; PDFs are read page by page from their text layer, falling back to
// rasterization and OCR for pages without one.
package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
)

// Acquisition methods.
const (
	METHOD_IMAGE_OCR = "image-ocr"
	METHOD_PDF_TEXT  = "pdf-text"
	METHOD_PDF_OCR   = "pdf-ocr"
	METHOD_MIXED     = "mixed"
)

var (
	imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}
	pdfExtensions   = map[string]bool{".pdf": true}
)

// Document is a file on local disk awaiting text acquisition. Name carries the
// client-supplied filename and decides the document kind; Path may be a temp file
// without an extension.
type Document struct {
	Path string
	Name string
}

func (d Document) ext() string {
	name := d.Name
	if name == "" {
		name = d.Path
	}
	return strings.ToLower(filepath.Ext(name))
}

// IsAllowed reports whether filename has an extension the adapter can process.
func IsAllowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return imageExtensions[ext] || pdfExtensions[ext]
}

// Result is the acquired text plus how it was obtained.
type Result struct {
	Text        string
	Method      string
	Pages       int
	PageMethods []string
	Duration    time.Duration
}

// Metadata converts the result into the persisted acquisition section.
func (r *Result) Metadata(filename string) *domain.Acquisition {
	return &domain.Acquisition{
		Method:      r.Method,
		Pages:       r.Pages,
		PageMethods: append([]string(nil), r.PageMethods...),
		Filename:    filename,
	}
}

// PageCounter reports the number of pages in a PDF.
type PageCounter interface {
	PageCount(path string) (int, error)
}

type pdfcpuCounter struct{}

func (pdfcpuCounter) PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

// Extractor acquires text from documents.
type Extractor struct {
	cfg     domain.OCRConfig
	runner  Runner
	counter PageCounter
	logger  *logrus.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithRunner replaces the exec-backed command runner.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithPageCounter replaces the pdfcpu page counter.
func WithPageCounter(c PageCounter) Option {
	return func(e *Extractor) { e.counter = c }
}

// NewExtractor creates an extractor, filling unset tool paths and recognition
// settings with defaults.
func NewExtractor(cfg domain.OCRConfig, logger *logrus.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.OEM <= 0 {
		cfg.OEM = 3
	}

	e := &Extractor{
		cfg:     cfg,
		runner:  ExecRunner{Logger: logger},
		counter: pdfcpuCounter{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Acquire extracts the text of doc. Collaborator failures are returned as
// *domain.ExtractionError; an unsupported extension is domain.ErrInvalidInput.
func (e *Extractor) Acquire(ctx context.Context, doc Document) (*Result, error) {
	start := time.Now()
	ext := doc.ext()

	var (
		res *Result
		err error
	)
	switch {
	case imageExtensions[ext]:
		res, err = e.acquireImage(ctx, doc.Path)
	case pdfExtensions[ext]:
		res, err = e.acquirePDF(ctx, doc.Path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidInput, ext)
	}
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"document": doc.Name,
			"ext":      ext,
		}).WithError(err).Error("Text acquisition failed")
		return nil, err
	}

	res.Text = Normalize(res.Text)
	res.Duration = time.Since(start)

	e.logger.WithFields(logrus.Fields{
		"document":    doc.Name,
		"method":      res.Method,
		"pages":       res.Pages,
		"chars":       len(res.Text),
		"duration_ms": res.Duration.Milliseconds(),
	}).Info("Text acquired")

	return res, nil
}

func (e *Extractor) acquireImage(ctx context.Context, path string) (*Result, error) {
	txt, err := e.tesseract(ctx, path)
	if err != nil {
		return nil, domain.NewExtractionError(0, err)
	}
	return &Result{
		Text:        txt,
		Method:      METHOD_IMAGE_OCR,
		Pages:       1,
		PageMethods: []string{METHOD_IMAGE_OCR},
	}, nil
}

func (e *Extractor) tesseract(ctx context.Context, imagePath string) (string, error) {
	// tesseract <img> stdout --oem 3 --psm 6 -l eng
	args := []string{
		imagePath, "stdout",
		"--oem", fmt.Sprintf("%d", e.cfg.OEM),
		"--psm", fmt.Sprintf("%d", e.cfg.PSM),
		"-l", e.cfg.TesseractLang,
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}
