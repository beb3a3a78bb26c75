// Package main provides the single-binary entry point for the report server.
// This version requires no external databases: reports and accounts share one
// SQLite file under the data directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/zoonotic-report-server/internal/app"
	"github.com/zoonotic-report-server/internal/config"
	"github.com/zoonotic-report-server/internal/logging"
	"github.com/zoonotic-report-server/internal/repository"
	"github.com/zoonotic-report-server/internal/setup"
)

func main() {
	cfg := config.LoadLiteConfig()
	full := cfg.ToConfig()

	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI("zoonotic-server-lite", cfg, full.OCR, os.Stdout)
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	importPath := flag.String("import", "", "import a reports.json export into the database and exit")
	flag.Parse()

	logger := logging.New(full.Logging)
	if err := cfg.EnsureDataDir(); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}
	logger.WithField("data_dir", cfg.DataDir).Info("Starting Zoonotic Report Server (Lite)")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, full, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize server")
	}
	defer application.Close()

	if *importPath != "" {
		if err := importReports(ctx, application, *importPath); err != nil {
			application.Close()
			log.Fatalf("Import failed: %v", err)
		}
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := application.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		application.Close()
		os.Exit(1)
	}

	logger.Info("Zoonotic Report Server (Lite) stopped")
}

func importReports(ctx context.Context, application *app.App, path string) error {
	inserter, ok := application.Reports.(repository.DocumentInserter)
	if !ok {
		return fmt.Errorf("report store does not accept raw documents")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	imported, skipped, err := repository.ImportJSON(ctx, inserter, f)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d report(s), skipped %d\n", imported, skipped)
	return nil
}
