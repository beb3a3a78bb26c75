// Package setup checks that a single-binary installation has what it needs to run:
// a writable data directory, the OCR command-line tools and an optional model file.
package setup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/zoonotic-report-server/internal/config"
	"github.com/zoonotic-report-server/internal/domain"
)

// Tool is one external program the text acquisition layer shells out to.
type Tool struct {
	Name     string // role, e.g. "tesseract"
	Command  string // configured command
	Path     string // resolved path, empty when missing
	Required bool
}

// Status describes the current installation.
type Status struct {
	DataDir         string
	DataDirExists   bool
	DatabasePath    string
	DatabasePresent bool
	ModelPath       string
	ModelPresent    bool
	ClassifierURL   string
	Tools           []Tool
	Issues          []string
}

// Ready reports whether the server can start and process uploads.
func (s *Status) Ready() bool {
	return len(s.Issues) == 0
}

// ClassifierConfigured reports whether a model file or remote endpoint is set.
func (s *Status) ClassifierConfigured() bool {
	return s.ModelPresent || s.ClassifierURL != ""
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// GetStatus inspects the installation described by cfg and ocrCfg.
func GetStatus(cfg *config.LiteConfig, ocrCfg domain.OCRConfig) *Status {
	status := &Status{
		DataDir:       cfg.DataDir,
		DatabasePath:  cfg.DatabasePath(),
		ModelPath:     cfg.ModelPath,
		ClassifierURL: cfg.ClassifierURL,
	}

	if info, err := os.Stat(cfg.DataDir); err == nil {
		status.DataDirExists = info.IsDir()
		if !info.IsDir() {
			status.Issues = append(status.Issues, fmt.Sprintf("Data directory path is not a directory: %s", cfg.DataDir))
		}
	}
	if _, err := os.Stat(status.DatabasePath); err == nil {
		status.DatabasePresent = true
	}

	if cfg.ModelPath != "" {
		if _, err := os.Stat(cfg.ModelPath); err == nil {
			status.ModelPresent = true
		} else {
			status.Issues = append(status.Issues, fmt.Sprintf("Classifier model not found: %s", cfg.ModelPath))
		}
	}

	for _, tool := range toolsFor(ocrCfg) {
		if path, err := lookPath(tool.Command); err == nil {
			tool.Path = path
		} else if tool.Required {
			status.Issues = append(status.Issues, fmt.Sprintf("%s not found on PATH (%s)", tool.Name, tool.Command))
		}
		status.Tools = append(status.Tools, tool)
	}

	return status
}

// Validate reports whether the installation is usable and lists what is not.
func Validate(cfg *config.LiteConfig, ocrCfg domain.OCRConfig) (bool, []string) {
	status := GetStatus(cfg, ocrCfg)
	return status.Ready(), status.Issues
}

// Init creates the data directory layout.
func Init(cfg *config.LiteConfig) error {
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

func toolsFor(cfg domain.OCRConfig) []Tool {
	command := func(configured, fallback string) string {
		if configured != "" {
			return configured
		}
		return fallback
	}
	return []Tool{
		{Name: "tesseract", Command: command(cfg.Tesseract, "tesseract"), Required: true},
		{Name: "pdftotext", Command: command(cfg.Pdftotext, "pdftotext"), Required: true},
		{Name: "pdftoppm", Command: command(cfg.Pdftoppm, "pdftoppm"), Required: true},
	}
}

// DefaultDataDir returns the lite data directory used when none is configured.
func DefaultDataDir() string {
	return config.DefaultLiteConfig().DataDir
}

// relative renders path relative to the working directory when shorter.
func relative(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || len(rel) >= len(path) {
		return path
	}
	return rel
}
