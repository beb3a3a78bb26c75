// Command extract runs text acquisition and field extraction on local lab report
// files and prints the resulting reports as JSON. Nothing is persisted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zoonotic-report-server/internal/domain"
	"github.com/zoonotic-report-server/internal/logging"
	"github.com/zoonotic-report-server/internal/ocr"
	"github.com/zoonotic-report-server/internal/service"
)

func main() {
	var (
		lang     = flag.String("lang", "eng", "tesseract language")
		dpi      = flag.Int("dpi", 300, "rasterization DPI for scanned PDF pages")
		maxPages = flag.Int("max-pages", 0, "stop after this many PDF pages (0 = all)")
		showText = flag.Bool("text", false, "include the acquired raw text")
		verbose  = flag.Bool("v", false, "log acquisition steps to stderr")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file>...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := logging.New(domain.LoggingConfig{Level: level, Format: "text"})

	extractor := ocr.NewExtractor(domain.OCRConfig{
		TesseractLang: *lang,
		DPI:           *dpi,
		MaxPages:      *maxPages,
	}, logger)
	pipeline := service.NewUploadPipeline(extractor, nil, service.NewReportBuilder(nil, logger), logger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	failed := 0
	for _, path := range flag.Args() {
		name := filepath.Base(path)
		if !ocr.IsAllowed(name) {
			fmt.Fprintf(os.Stderr, "%s: unsupported file type\n", path)
			failed++
			continue
		}

		report, err := pipeline.Analyze(context.Background(), ocr.Document{Path: path, Name: name})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		if !*showText {
			report.RawText = ""
		}
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
