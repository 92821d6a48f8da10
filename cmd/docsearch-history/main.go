package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/docsearch/pkg/history"
)

var (
	driver         = flag.String("driver", getEnv("DOCSEARCH_HISTORY_DRIVER", history.DriverPostgres), "History database driver (postgres, sqlite3)")
	dsn            = flag.String("dsn", getEnv("DOCSEARCH_HISTORY_DSN", "postgres://localhost/docsearch?sslmode=disable"), "History database DSN")
	retention      = flag.Duration("retention", 30*24*time.Hour, "Delete history older than this")
	pruneSchedule  = flag.String("prune-schedule", "5 0 * * *", "Cron schedule for pruning (default: 00:05 daily)")
	reportSchedule = flag.String("report-schedule", "0 * * * *", "Cron schedule for the popular query report (default: hourly)")
	reportWindow   = flag.Duration("report-window", 24*time.Hour, "Window of the popular query report")
	reportSize     = flag.Int("report-size", 20, "Number of queries in the popular query report")
	runOnce        = flag.Bool("run-once", false, "Prune and report once, then exit")
	logLevel       = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()
	logger := setupLogger(*logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := history.Open(ctx, *driver, *dsn)
	if err != nil {
		logger.Fatalf("Failed to open history database: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatalf("Failed to migrate history database: %v", err)
	}

	m := &maintainer{store: store, log: logger, retention: *retention, window: *reportWindow, size: *reportSize}

	if *runOnce {
		if err := m.prune(ctx); err != nil {
			logger.Fatalf("Prune failed: %v", err)
		}
		if err := m.report(ctx); err != nil {
			logger.Fatalf("Report failed: %v", err)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*pruneSchedule, m.job("prune", m.prune)); err != nil {
		logger.Fatalf("Failed to schedule pruning: %v", err)
	}
	if _, err := c.AddFunc(*reportSchedule, m.job("report", m.report)); err != nil {
		logger.Fatalf("Failed to schedule report: %v", err)
	}

	c.Start()
	logger.WithFields(logrus.Fields{
		"prune_schedule":  *pruneSchedule,
		"report_schedule": *reportSchedule,
		"retention":       retention.String(),
	}).Info("History maintainer started")

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")
	<-c.Stop().Done()
	logger.Info("History maintainer stopped")
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

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
