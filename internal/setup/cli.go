package setup

import (
	"fmt"
	"io"

	"github.com/zoonotic-report-server/internal/config"
	"github.com/zoonotic-report-server/internal/domain"
)

// CLI provides command-line interface for setup operations.
type CLI struct {
	cfg    *config.LiteConfig
	ocr    domain.OCRConfig
	binary string
	out    io.Writer
}

// NewCLI creates a new setup CLI instance.
func NewCLI(binary string, cfg *config.LiteConfig, ocrCfg domain.OCRConfig, out io.Writer) *CLI {
	return &CLI{
		cfg:    cfg,
		ocr:    ocrCfg,
		binary: binary,
		out:    out,
	}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "init":
		return c.init()
	case "status":
		return c.showStatus()
	case "validate":
		return c.validate()
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		return c.showHelp()
	}
}

// showHelp displays usage information.
func (c *CLI) showHelp() error {
	fmt.Fprintf(c.out, `
Zoonotic Report Server Setup

Usage:
  %[1]s setup <command>

Commands:
  init      Create the data directory
  status    Show data directory, database, classifier and OCR tool status
  validate  Exit with an error when something required is missing

Environment:
  ZOONOTIC_DATA_DIR     Data directory (default %[2]s)
  ZOONOTIC_MODEL_PATH   Symptom classifier model file
`, c.binary, DefaultDataDir())
	return nil
}

func (c *CLI) init() error {
	if err := Init(c.cfg); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Data directory ready: %s\n", relative(c.cfg.DataDir))
	return nil
}

// showStatus displays the current setup status.
func (c *CLI) showStatus() error {
	status := GetStatus(c.cfg, c.ocr)

	fmt.Fprintln(c.out, "Zoonotic Report Server Status")
	fmt.Fprintln(c.out, "=============================")
	fmt.Fprintln(c.out)

	fmt.Fprintln(c.out, "Data Directory:")
	fmt.Fprintf(c.out, "  Path: %s\n", status.DataDir)
	if status.DataDirExists {
		fmt.Fprintln(c.out, "  Status: ✓ Exists")
	} else {
		fmt.Fprintln(c.out, "  Status: - Will be created on first run")
	}
	if status.DatabasePresent {
		fmt.Fprintln(c.out, "  Database: ✓ Present")
	} else {
		fmt.Fprintln(c.out, "  Database: - Not created yet")
	}
	fmt.Fprintln(c.out)

	fmt.Fprintln(c.out, "Symptom Classifier:")
	switch {
	case status.ModelPresent:
		fmt.Fprintf(c.out, "  Model: ✓ %s\n", status.ModelPath)
	case status.ClassifierURL != "":
		fmt.Fprintf(c.out, "  Remote: ✓ %s\n", status.ClassifierURL)
	default:
		fmt.Fprintln(c.out, "  Status: - Not configured (keyword analysis only)")
	}
	fmt.Fprintln(c.out)

	fmt.Fprintln(c.out, "OCR Tools:")
	for _, tool := range status.Tools {
		if tool.Path != "" {
			fmt.Fprintf(c.out, "  %s: ✓ %s\n", tool.Name, tool.Path)
		} else {
			fmt.Fprintf(c.out, "  %s: ✗ not found (%s)\n", tool.Name, tool.Command)
		}
	}
	fmt.Fprintln(c.out)

	if len(status.Issues) > 0 {
		fmt.Fprintln(c.out, "Issues:")
		for _, issue := range status.Issues {
			fmt.Fprintf(c.out, "  ⚠ %s\n", issue)
		}
		fmt.Fprintln(c.out)
	}

	return nil
}

// validate checks the current configuration.
func (c *CLI) validate() error {
	valid, issues := Validate(c.cfg, c.ocr)
	if valid {
		fmt.Fprintln(c.out, "✓ Configuration is valid!")
		return nil
	}

	fmt.Fprintln(c.out, "✗ Configuration has issues:")
	for _, issue := range issues {
		fmt.Fprintf(c.out, "  - %s\n", issue)
	}
	return fmt.Errorf("%d setup issue(s) found", len(issues))
}
