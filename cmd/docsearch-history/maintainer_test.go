package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docsearch/pkg/history"
)

func newMaintainer(t *testing.T) (*maintainer, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()

	store, err := history.Open(ctx, history.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &maintainer{
		store:     store,
		log:       logger,
		retention: 7 * 24 * time.Hour,
		window:    24 * time.Hour,
		size:      5,
		now:       func() time.Time { return now },
	}, &buf
}

func TestMaintainer_PruneAndReport(t *testing.T) {
	m, buf := newMaintainer(t)
	ctx := context.Background()
	now := m.clock()

	for _, e := range []history.Entry{
		{Query: "HashMap::get", At: now.Add(-time.Hour)},
		{Query: "HashMap::get", At: now.Add(-2 * time.Hour)},
		{Query: "Vec::push", At: now.Add(-3 * time.Hour)},
		{Query: "old query", At: now.Add(-30 * 24 * time.Hour)},
	} {
		require.NoError(t, m.store.Record(ctx, e))
	}

	require.NoError(t, m.prune(ctx))
	assert.Contains(t, buf.String(), "deleted=1")

	top, err := m.store.Popular(ctx, now.Add(-365*24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []history.QueryCount{{Query: "HashMap::get", Count: 2}, {Query: "Vec::push", Count: 1}}, top)

	buf.Reset()
	require.NoError(t, m.report(ctx))
	out := buf.String()
	assert.Contains(t, out, "Top 2 queries")
	assert.Contains(t, out, "HashMap::get")
	assert.Less(t, bytes.Index([]byte(out), []byte("HashMap::get")), bytes.Index([]byte(out), []byte("Vec::push")))
}

func TestMaintainer_EmptyReport(t *testing.T) {
	m, buf := newMaintainer(t)
	require.NoError(t, m.report(context.Background()))
	assert.Contains(t, buf.String(), "No queries recorded")
}

func TestMaintainer_JobLogsFailure(t *testing.T) {
	m, buf := newMaintainer(t)
	require.NoError(t, m.store.Close())

	m.job("prune", m.prune)()
	assert.Contains(t, buf.String(), "Job failed")
	assert.Contains(t, buf.String(), "job=prune")
}
