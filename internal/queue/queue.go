package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shivensaigal/QueueCtl/internal/config"
	"github.com/shivensaigal/QueueCtl/internal/store"
	"github.com/shivensaigal/QueueCtl/pkg/models"
)

// maxBackoffSeconds caps the exponential retry delay at one hour.
const maxBackoffSeconds = 3600

// Queue owns every job state transition. The store is authoritative;
// the pending channel holds snapshots that act as claim tickets.
// Dequeue re-checks the stored state and moves the job to processing
// as one serialized step, so a pending record is claimed only once.
// Snapshots of jobs deleted or already claimed stay in the channel
// until a Dequeue takes and skips them.
type Queue struct {
	store       *store.Store
	cfg         *config.Config
	pending     *pendingQueue
	logger      *slog.Logger
	initialized atomic.Bool
	claimMu     sync.Mutex
}

func New(st *store.Store, cfg *config.Config, logger *slog.Logger) *Queue {
	return &Queue{
		store:   st,
		cfg:     cfg,
		pending: newPendingQueue(),
		logger:  logger,
	}
}

// Initialize loads pending jobs from the store into the channel.
// Records left in processing by a crashed run are reset to pending
// first; the prior attempt is treated as unobserved, which is within
// the at-least-once contract.
func (q *Queue) Initialize() error {
	if !q.initialized.CompareAndSwap(false, true) {
		return nil
	}

	for _, job := range q.store.ListByState(models.StateProcessing) {
		job.ResetForRetry(time.Now())
		if err := q.store.Put(job); err != nil {
			return fmt.Errorf("requeue stale job %s: %w", job.ID, err)
		}
		q.logger.Warn("requeued job left in processing by a previous run", "job_id", job.ID)
	}

	pending := q.store.ListByState(models.StatePending)
	for _, job := range pending {
		q.pending.Offer(job)
	}
	q.logger.Info("queue initialized", "pending", len(pending))
	return nil
}

// Enqueue creates a new pending job and offers it to the channel.
func (q *Queue) Enqueue(command string, maxRetries int) (models.Job, error) {
	if strings.TrimSpace(command) == "" {
		return models.Job{}, errors.New("command cannot be empty")
	}
	if maxRetries < 0 {
		return models.Job{}, errors.New("max retries cannot be negative")
	}

	job := models.NewJob(command, maxRetries)
	if err := q.store.Put(job); err != nil {
		return models.Job{}, err
	}
	q.pending.Offer(job)
	q.logger.Info("job enqueued", "job_id", job.ID, "command", job.Command)
	return job, nil
}

// Dequeue claims the next pending job, blocking up to timeout. The
// snapshot from the channel is only a claim ticket; the authoritative
// record is re-read so stale snapshots of deleted or already-claimed
// jobs are skipped.
func (q *Queue) Dequeue(timeout time.Duration) (models.Job, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return models.Job{}, false, nil
		}
		candidate, ok := q.pending.Poll(remaining)
		if !ok {
			return models.Job{}, false, nil
		}

		q.claimMu.Lock()
		current, found := q.store.Get(candidate.ID)
		if !found || current.State != models.StatePending {
			q.claimMu.Unlock()
			continue
		}

		current.MarkProcessing(time.Now())
		err := q.store.Put(current)
		q.claimMu.Unlock()
		if err != nil {
			return models.Job{}, false, fmt.Errorf("persist dequeue of %s: %w", current.ID, err)
		}
		q.logger.Debug("job dequeued", "job_id", current.ID)
		return current, true, nil
	}
}

// Complete marks a processing job as completed.
func (q *Queue) Complete(job models.Job) error {
	current, ok := q.store.Get(job.ID)
	if !ok {
		return fmt.Errorf("job %s not found", job.ID)
	}
	current.MarkCompleted(time.Now())
	if err := q.store.Put(current); err != nil {
		return err
	}
	q.logger.Info("job completed", "job_id", current.ID, "command", current.Command)
	return nil
}

// Fail records a failed attempt. While budget remains the job moves to
// failed with an exponential backoff; once the new attempt count
// exceeds max_retries it moves to dead.
func (q *Queue) Fail(job models.Job, reason string) error {
	current, ok := q.store.Get(job.ID)
	if !ok {
		return fmt.Errorf("job %s not found", job.ID)
	}

	now := time.Now()
	if current.Attempts < current.MaxRetries {
		delay := q.backoffDelay(current.Attempts + 1)
		current.MarkFailed(reason, now.Add(delay), now)
		if err := q.store.Put(current); err != nil {
			return err
		}
		q.logger.Warn("job failed",
			"job_id", current.ID,
			"attempt", current.Attempts,
			"max_retries", current.MaxRetries,
			"reason", reason,
			"retry_in", delay)
		return nil
	}

	current.MarkDead(reason, now)
	if err := q.store.Put(current); err != nil {
		return err
	}
	q.logger.Error("job moved to dead-letter queue",
		"job_id", current.ID,
		"attempts", current.Attempts,
		"reason", reason)
	return nil
}

// ProcessRetries requeues every failed job whose backoff has elapsed
// at now, returning the number requeued.
func (q *Queue) ProcessRetries(now time.Time) (int, error) {
	ready := q.store.ListReadyForRetry(now)
	requeued := 0
	for _, job := range ready {
		job.ResetForRetry(time.Now())
		if err := q.store.Put(job); err != nil {
			return requeued, err
		}
		q.pending.Offer(job)
		q.logger.Info("job requeued for retry",
			"job_id", job.ID,
			"attempt", job.Attempts+1,
			"max_retries", job.MaxRetries)
		requeued++
	}
	return requeued, nil
}

// RetryDead enqueues a fresh copy of a dead job under a new id. The
// dead record is left untouched as an audit trail.
func (q *Queue) RetryDead(id string) (models.Job, error) {
	current, ok := q.store.Get(id)
	if !ok || current.State != models.StateDead {
		return models.Job{}, fmt.Errorf("no job with id %s in the dead state", id)
	}

	fresh := models.NewJob(current.Command, current.MaxRetries)
	if err := q.store.Put(fresh); err != nil {
		return models.Job{}, err
	}
	q.pending.Offer(fresh)
	q.logger.Info("dead job requeued as new job", "dead_job_id", id, "job_id", fresh.ID)
	return fresh, nil
}

// Delete removes a job from the store and, best-effort, from the
// pending channel. A job already handed to a worker cannot be
// recalled.
func (q *Queue) Delete(id string) (bool, error) {
	q.pending.Remove(id)
	return q.store.Delete(id)
}

func (q *Queue) Get(id string) (models.Job, bool) {
	return q.store.Get(id)
}

func (q *Queue) PendingCount() int {
	return q.pending.Len()
}

func (q *Queue) backoffDelay(attempt int) time.Duration {
	seconds := math.Pow(float64(q.cfg.BackoffBase), float64(attempt))
	if seconds > maxBackoffSeconds || math.IsInf(seconds, 1) || math.IsNaN(seconds) {
		seconds = maxBackoffSeconds
	}
	return time.Duration(seconds) * time.Second
}
