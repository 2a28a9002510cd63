// Package dlq is the operator surface over jobs in the terminal dead
// state.
package dlq

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shivensaigal/QueueCtl/internal/queue"
	"github.com/shivensaigal/QueueCtl/internal/store"
	"github.com/shivensaigal/QueueCtl/pkg/models"
)

type Manager struct {
	store  *store.Store
	queue  *queue.Queue
	logger *slog.Logger
}

// Statistics summarizes the dead-letter queue. TimeoutErrors counts
// jobs whose error message contains "timeout", case-insensitively.
type Statistics struct {
	Count         int
	Oldest        *time.Time
	Newest        *time.Time
	TimeoutErrors int
}

func NewManager(st *store.Store, q *queue.Queue, logger *slog.Logger) *Manager {
	return &Manager{store: st, queue: q, logger: logger}
}

// deadJobs returns the dead records sorted by update time then id so
// pagination is stable across calls.
func (m *Manager) deadJobs() []models.Job {
	jobs := m.store.ListByState(models.StateDead)
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].UpdatedAt.Equal(jobs[j].UpdatedAt.Time) {
			return jobs[i].UpdatedAt.Before(jobs[j].UpdatedAt.Time)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

func (m *Manager) List(offset, limit int) []models.Job {
	jobs := m.deadJobs()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(jobs) {
		return nil
	}
	jobs = jobs[offset:]
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs
}

func (m *Manager) Get(id string) (models.Job, bool) {
	job, ok := m.store.Get(id)
	if !ok || job.State != models.StateDead {
		return models.Job{}, false
	}
	return job, true
}

func (m *Manager) FilterByError(substr string) []models.Job {
	needle := strings.ToLower(substr)
	var out []models.Job
	for _, job := range m.deadJobs() {
		if job.ErrorMessage != nil && strings.Contains(strings.ToLower(*job.ErrorMessage), needle) {
			out = append(out, job)
		}
	}
	return out
}

func (m *Manager) FilterByTimeRange(start, end time.Time) []models.Job {
	var out []models.Job
	for _, job := range m.deadJobs() {
		if job.UpdatedAt.After(start) && job.UpdatedAt.Before(end) {
			out = append(out, job)
		}
	}
	return out
}

// Retry enqueues a fresh copy of a dead job under a new id.
func (m *Manager) Retry(id string) (models.Job, error) {
	return m.queue.RetryDead(id)
}

// RetryMany retries each id, returning how many were enqueued.
func (m *Manager) RetryMany(ids []string) int {
	retried := 0
	for _, id := range ids {
		if _, err := m.Retry(id); err != nil {
			m.logger.Warn("dead job retry skipped", "job_id", id, "err", err)
			continue
		}
		retried++
	}
	return retried
}

func (m *Manager) RetryAll() int {
	jobs := m.deadJobs()
	ids := make([]string, len(jobs))
	for i, job := range jobs {
		ids[i] = job.ID
	}
	return m.RetryMany(ids)
}

// Delete permanently removes a dead job. Jobs in any other state are
// left alone.
func (m *Manager) Delete(id string) (bool, error) {
	if _, ok := m.Get(id); !ok {
		return false, nil
	}
	return m.store.Delete(id)
}

// DeleteMany removes the given dead jobs with a single snapshot write.
func (m *Manager) DeleteMany(ids []string) (int, error) {
	var dead []string
	for _, id := range ids {
		if _, ok := m.Get(id); ok {
			dead = append(dead, id)
		}
	}
	if len(dead) == 0 {
		return 0, nil
	}
	return m.store.DeleteMany(dead)
}

func (m *Manager) ClearAll() (int, error) {
	return m.store.DeleteByState(models.StateDead)
}

// ClearOlderThan removes dead jobs last updated more than days ago.
func (m *Manager) ClearOlderThan(days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	var ids []string
	for _, job := range m.deadJobs() {
		if job.UpdatedAt.Before(cutoff) {
			ids = append(ids, job.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return m.store.DeleteMany(ids)
}

func (m *Manager) Count() int {
	return len(m.deadJobs())
}

func (m *Manager) Statistics() Statistics {
	jobs := m.deadJobs()
	stats := Statistics{Count: len(jobs)}
	if len(jobs) == 0 {
		return stats
	}

	oldest := jobs[0].UpdatedAt.Time
	newest := jobs[len(jobs)-1].UpdatedAt.Time
	stats.Oldest = &oldest
	stats.Newest = &newest

	for _, job := range jobs {
		if job.ErrorMessage != nil && strings.Contains(strings.ToLower(*job.ErrorMessage), "timeout") {
			stats.TimeoutErrors++
		}
	}
	return stats
}
