package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shivensaigal/QueueCtl/pkg/models"
)

// Store is the durable source of truth for job records. It keeps the
// full set in memory and flushes a complete snapshot to disk on every
// mutation: serialize to a temp sibling file, then rename over the
// live file, so a crash leaves either the pre- or post-mutation state.
type Store struct {
	mu   sync.RWMutex
	path string
	jobs map[string]models.Job
}

// Open loads the store from path. An absent or empty file initializes
// an empty store; a malformed non-empty file is an error the caller
// must treat as fatal.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		jobs: make(map[string]models.Job),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}

	var jobs []models.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, job := range jobs {
		s.jobs[job.ID] = job
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Put upserts a record by id and flushes the snapshot. On a write
// error the in-memory state is kept; the error is surfaced and the
// next successful write reconciles the file.
func (s *Store) Put(job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return s.persistLocked()
}

func (s *Store) Get(id string) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

func (s *Store) All() []models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out
}

func (s *Store) ListByState(state models.JobState) []models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Job
	for _, job := range s.jobs {
		if job.State == state {
			out = append(out, job)
		}
	}
	return out
}

// ListReadyForRetry returns the failed records whose backoff delay has
// elapsed at now.
func (s *Store) ListReadyForRetry(now time.Time) []models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Job
	for _, job := range s.jobs {
		if job.State != models.StateFailed || job.Attempts > job.MaxRetries {
			continue
		}
		if job.ReadyForRetry(now) {
			out = append(out, job)
		}
	}
	return out
}

func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	delete(s.jobs, id)
	return true, s.persistLocked()
}

// DeleteMany removes the given ids with a single snapshot write.
func (s *Store) DeleteMany(ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if _, ok := s.jobs[id]; ok {
			delete(s.jobs, id)
			deleted++
		}
	}
	if deleted == 0 {
		return 0, nil
	}
	return deleted, s.persistLocked()
}

// DeleteByState removes every record in the given state with a single
// snapshot write and returns the count.
func (s *Store) DeleteByState(state models.JobState) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, job := range s.jobs {
		if job.State == state {
			delete(s.jobs, id)
			deleted++
		}
	}
	if deleted == 0 {
		return 0, nil
	}
	return deleted, s.persistLocked()
}

// Statistics returns record counts grouped by state, with zero entries
// for states that have no records.
func (s *Store) Statistics() map[models.JobState]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.JobState]int, len(models.AllStates))
	for _, state := range models.AllStates {
		out[state] = 0
	}
	for _, job := range s.jobs {
		out[job.State]++
	}
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// persistLocked writes the snapshot. The record array is sorted by
// creation time then id so repeated snapshots of the same set are
// byte-identical.
func (s *Store) persistLocked() error {
	jobs := make([]models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt.Time) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt.Time)
		}
		return jobs[i].ID < jobs[j].ID
	})

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode jobs: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
