package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/docsearch/pkg/history"
)

const jobTimeout = 10 * time.Minute

type maintainer struct {
	store     *history.Store
	log       *logrus.Logger
	retention time.Duration
	window    time.Duration
	size      int
	now       func() time.Time
}

func (m *maintainer) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

// prune deletes entries older than the retention period.
func (m *maintainer) prune(ctx context.Context) error {
	cutoff := m.clock().Add(-m.retention)
	n, err := m.store.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{"deleted": n, "before": cutoff.UTC().Format(time.RFC3339)}).Info("History pruned")
	return nil
}

// report logs the most frequent queries of the report window.
func (m *maintainer) report(ctx context.Context) error {
	top, err := m.store.Popular(ctx, m.clock().Add(-m.window), m.size)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		m.log.Info("No queries recorded in the report window")
		return nil
	}
	m.log.Infof("Top %d queries over the last %s:", len(top), m.window)
	for i, qc := range top {
		m.log.Infof("  %2d. %-40q %d", i+1, qc.Query, qc.Count)
	}
	return nil
}

// job adapts fn to a cron callback with its own timeout.
func (m *maintainer) job(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			m.log.WithError(err).WithField("job", name).Error("Job failed")
			return
		}
		m.log.WithFields(logrus.Fields{"job": name, "elapsed": time.Since(start).String()}).Debug("Job completed")
	}
}
