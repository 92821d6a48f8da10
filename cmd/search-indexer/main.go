package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/docsearch/pkg/async"
	"github.com/platinummonkey/docsearch/pkg/observability"
)

func main() {
	outDir := flag.String("out-dir", "web/public", "Directory for the normalized JSON indexes")
	validate := flag.Bool("validate", true, "Build a catalog from each index to check it before writing")
	workers := flag.Int("workers", 4, "Number of files converted concurrently")
	timeout := flag.Duration("timeout", 2*time.Minute, "Per-file conversion timeout")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	async.SetLogger(observability.NewLogger(observability.WarnLevel, os.Stderr))

	inputs, err := expandInputs(flag.Args())
	if err != nil {
		logger.Fatalf("Invalid input pattern: %v", err)
	}
	if len(inputs) == 0 {
		logger.Fatal("No input files; pass index files or glob patterns as arguments")
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		logger.Fatalf("Failed to create output directory: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("Converting %d index files into %s", len(inputs), *outDir)
	conv := converter{outDir: *outDir, validate: *validate, log: logger}
	errs := async.Batch(ctx, inputs, *workers, "index convert", *timeout, conv.convert)
	for _, err := range errs {
		logger.Error(err)
	}
	if len(errs) > 0 {
		logger.Fatalf("%d of %d conversions failed", len(errs), len(inputs))
	}
	logger.Info("All indexes converted")
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// expandInputs resolves glob patterns; plain paths pass through unchanged.
func expandInputs(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, err
		}
		if matches == nil {
			matches = []string{arg}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}
