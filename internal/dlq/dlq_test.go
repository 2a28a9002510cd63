package dlq

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivensaigal/QueueCtl/internal/config"
	"github.com/shivensaigal/QueueCtl/internal/queue"
	"github.com/shivensaigal/QueueCtl/internal/store"
	"github.com/shivensaigal/QueueCtl/pkg/models"
)

func newTestManager(t *testing.T) (*Manager, *store.Store, *queue.Queue) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "jobs.json"))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.New(st, config.Default(), logger)
	return NewManager(st, q, logger), st, q
}

func putDeadJob(t *testing.T, st *store.Store, command, reason string, diedAt time.Time) models.Job {
	t.Helper()
	job := models.NewJob(command, 1)
	job.MarkDead(reason, diedAt)
	require.NoError(t, st.Put(job))
	return job
}

func TestListPaginatesInDeathOrder(t *testing.T) {
	m, st, _ := newTestManager(t)
	base := time.Now().Add(-time.Hour)

	oldest := putDeadJob(t, st, "false", "boom", base)
	middle := putDeadJob(t, st, "false", "boom", base.Add(time.Minute))
	newest := putDeadJob(t, st, "false", "boom", base.Add(2*time.Minute))

	all := m.List(0, 0)
	require.Len(t, all, 3)
	assert.Equal(t, oldest.ID, all[0].ID)
	assert.Equal(t, newest.ID, all[2].ID)

	page := m.List(1, 1)
	require.Len(t, page, 1)
	assert.Equal(t, middle.ID, page[0].ID)

	assert.Empty(t, m.List(5, 10))
}

func TestGetOnlyReturnsDeadJobs(t *testing.T) {
	m, st, _ := newTestManager(t)

	dead := putDeadJob(t, st, "false", "boom", time.Now())
	pending := models.NewJob("true", 3)
	require.NoError(t, st.Put(pending))

	_, ok := m.Get(dead.ID)
	assert.True(t, ok)
	_, ok = m.Get(pending.ID)
	assert.False(t, ok)
	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestFilterByErrorIsCaseInsensitive(t *testing.T) {
	m, st, _ := newTestManager(t)

	timedOut := putDeadJob(t, st, "sleep 10", "Job Timed Out after 1 seconds", time.Now())
	putDeadJob(t, st, "false", "Command failed with exit code 1", time.Now())

	matches := m.FilterByError("timed out")
	require.Len(t, matches, 1)
	assert.Equal(t, timedOut.ID, matches[0].ID)
}

func TestFilterByTimeRange(t *testing.T) {
	m, st, _ := newTestManager(t)
	base := time.Now().Add(-time.Hour)

	inside := putDeadJob(t, st, "false", "boom", base.Add(30*time.Minute))
	putDeadJob(t, st, "false", "boom", base.Add(-time.Minute))

	matches := m.FilterByTimeRange(base, base.Add(time.Hour))
	require.Len(t, matches, 1)
	assert.Equal(t, inside.ID, matches[0].ID)
}

func TestRetryCreatesFreshPendingJob(t *testing.T) {
	m, st, q := newTestManager(t)

	dead := putDeadJob(t, st, "echo again", "boom", time.Now())

	fresh, err := m.Retry(dead.ID)
	require.NoError(t, err)
	assert.NotEqual(t, dead.ID, fresh.ID)
	assert.Equal(t, dead.Command, fresh.Command)
	assert.Equal(t, models.StatePending, fresh.State)

	original, found := st.Get(dead.ID)
	require.True(t, found)
	assert.Equal(t, models.StateDead, original.State)
	assert.Equal(t, 1, q.PendingCount())
}

func TestRetryManyCountsSuccesses(t *testing.T) {
	m, st, _ := newTestManager(t)

	a := putDeadJob(t, st, "false", "boom", time.Now())
	b := putDeadJob(t, st, "false", "boom", time.Now())

	count := m.RetryMany([]string{a.ID, "missing", b.ID})
	assert.Equal(t, 2, count)
}

func TestRetryAll(t *testing.T) {
	m, st, _ := newTestManager(t)

	putDeadJob(t, st, "false", "boom", time.Now())
	putDeadJob(t, st, "false", "boom", time.Now())

	assert.Equal(t, 2, m.RetryAll())
	assert.Equal(t, 2, m.Count(), "originals are untouched")
	assert.Equal(t, 4, st.Count())
}

func TestDeleteRefusesNonDeadJobs(t *testing.T) {
	m, st, _ := newTestManager(t)

	dead := putDeadJob(t, st, "false", "boom", time.Now())
	pending := models.NewJob("true", 3)
	require.NoError(t, st.Put(pending))

	deleted, err := m.Delete(pending.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = m.Delete(dead.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 1, st.Count())
}

func TestClearAll(t *testing.T) {
	m, st, _ := newTestManager(t)

	putDeadJob(t, st, "false", "boom", time.Now())
	putDeadJob(t, st, "false", "boom", time.Now())
	require.NoError(t, st.Put(models.NewJob("true", 3)))

	count, err := m.ClearAll()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, st.Count())
}

func TestClearOlderThan(t *testing.T) {
	m, st, _ := newTestManager(t)

	old := putDeadJob(t, st, "false", "boom", time.Now().AddDate(0, 0, -10))
	recent := putDeadJob(t, st, "false", "boom", time.Now().AddDate(0, 0, -1))

	count, err := m.ClearOlderThan(7)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, found := st.Get(old.ID)
	assert.False(t, found)
	_, found = st.Get(recent.ID)
	assert.True(t, found)
}

func TestStatistics(t *testing.T) {
	m, st, _ := newTestManager(t)

	assert.Equal(t, Statistics{}, m.Statistics())

	base := time.Now().Add(-time.Hour)
	putDeadJob(t, st, "sleep 10", "Job timed out after 1 seconds", base)
	putDeadJob(t, st, "curl x", "connection TIMEOUT", base.Add(10*time.Minute))
	putDeadJob(t, st, "false", "Command failed with exit code 1", base.Add(20*time.Minute))

	stats := m.Statistics()
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 2, stats.TimeoutErrors)
	require.NotNil(t, stats.Oldest)
	require.NotNil(t, stats.Newest)
	assert.True(t, stats.Oldest.Before(*stats.Newest))
}
