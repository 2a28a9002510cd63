package worker

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

func newTestManager(t *testing.T) (*Manager, *queue.Queue, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "jobs.json"))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.JobTimeoutSeconds = 5
	cfg.RetryCheckIntervalSeconds = 1

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.New(st, cfg, logger)
	m := NewManager(q, cfg, nil, logger)
	return m, q, st
}

func jobInState(st *store.Store, id string, state models.JobState) func() bool {
	return func() bool {
		job, ok := st.Get(id)
		return ok && job.State == state
	}
}

func TestManagerRunsJobToCompletion(t *testing.T) {
	skipOnWindows(t)
	m, q, st := newTestManager(t)

	job, err := q.Enqueue("echo hi", 3)
	require.NoError(t, err)

	require.NoError(t, m.Start(1))
	defer m.Stop()

	require.Eventually(t, jobInState(st, job.ID, models.StateCompleted), 10*time.Second, 50*time.Millisecond)

	stored, _ := st.Get(job.ID)
	assert.Equal(t, 0, stored.Attempts)
	assert.Nil(t, stored.ErrorMessage)
}

func TestManagerMovesExhaustedJobToDead(t *testing.T) {
	skipOnWindows(t)
	m, q, st := newTestManager(t)

	job, err := q.Enqueue("exit 7", 0)
	require.NoError(t, err)

	require.NoError(t, m.Start(1))
	defer m.Stop()

	require.Eventually(t, jobInState(st, job.ID, models.StateDead), 10*time.Second, 50*time.Millisecond)

	stored, _ := st.Get(job.ID)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "Command failed with exit code 7", *stored.ErrorMessage)
}

func TestManagerTimesOutLongJob(t *testing.T) {
	skipOnWindows(t)
	m, q, st := newTestManager(t)
	m.cfg.JobTimeoutSeconds = 1

	job, err := q.Enqueue("sleep 10", 0)
	require.NoError(t, err)

	require.NoError(t, m.Start(1))
	defer m.Stop()

	require.Eventually(t, jobInState(st, job.ID, models.StateDead), 15*time.Second, 100*time.Millisecond)

	stored, _ := st.Get(job.ID)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "timed out")
}

func TestManagerRetriesFailedJobViaTicker(t *testing.T) {
	skipOnWindows(t)
	m, q, st := newTestManager(t)
	m.cfg.BackoffBase = 1 // 1^k = 1s delay between attempts

	job, err := q.Enqueue("false", 1)
	require.NoError(t, err)

	require.NoError(t, m.Start(1))
	defer m.Stop()

	require.Eventually(t, jobInState(st, job.ID, models.StateDead), 20*time.Second, 100*time.Millisecond)

	stored, _ := st.Get(job.ID)
	assert.Equal(t, 2, stored.Attempts, "one initial attempt plus one retry")
}

func TestManagerProcessesJobsConcurrently(t *testing.T) {
	skipOnWindows(t)
	m, q, st := newTestManager(t)

	const jobs = 20
	ids := make([]string, 0, jobs)
	for i := 0; i < jobs; i++ {
		job, err := q.Enqueue("true", 0)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	require.NoError(t, m.Start(5))
	defer m.Stop()

	require.Eventually(t, func() bool {
		return st.Statistics()[models.StateCompleted] == jobs
	}, 30*time.Second, 100*time.Millisecond)

	for _, id := range ids {
		job, ok := st.Get(id)
		require.True(t, ok)
		assert.Equal(t, models.StateCompleted, job.State)
	}
}

func TestManagerStartIsIdempotent(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.NoError(t, m.Start(2))
	defer m.Stop()
	assert.Equal(t, 2, m.WorkerCount())

	require.NoError(t, m.Start(5))
	assert.Equal(t, 2, m.WorkerCount(), "second start is a no-op")
	assert.True(t, m.Running())
}

func TestManagerAddWorkersRequiresRunning(t *testing.T) {
	m, _, _ := newTestManager(t)

	assert.Error(t, m.AddWorkers(1))
	assert.Error(t, m.AddWorkers(0))

	require.NoError(t, m.Start(1))
	defer m.Stop()

	require.NoError(t, m.AddWorkers(2))
	assert.Equal(t, 3, m.WorkerCount())
}

func TestManagerStatusReportsWorkers(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.NoError(t, m.Start(2))

	status := m.Status()
	require.Len(t, status, 2)
	assert.NotEqual(t, status[0].ID, status[1].ID)

	require.Eventually(t, func() bool {
		for _, s := range m.Status() {
			if !s.Running {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)

	m.Stop()
	assert.False(t, m.Running())
	assert.Equal(t, 0, m.WorkerCount())
}

func TestManagerStopWithoutStartWarnsOnly(t *testing.T) {
	m, _, _ := newTestManager(t)
	m.Stop()
	assert.False(t, m.Running())
}

func TestManagerStartPicksUpPersistedPendingJobs(t *testing.T) {
	skipOnWindows(t)
	m, _, st := newTestManager(t)

	// Enqueued by a previous process: present on disk, never offered
	// to this process's channel.
	job := models.NewJob("echo hi", 3)
	require.NoError(t, st.Put(job))

	require.NoError(t, m.Start(1))
	defer m.Stop()

	require.Eventually(t, jobInState(st, job.ID, models.StateCompleted), 10*time.Second, 50*time.Millisecond)
}
