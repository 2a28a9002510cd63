package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shivensaigal/QueueCtl/internal/joblog"
	"github.com/shivensaigal/QueueCtl/internal/queue"
	"github.com/shivensaigal/QueueCtl/pkg/models"
)

// dequeueTimeout bounds each blocking poll so the shutdown flag is
// observed between iterations.
const dequeueTimeout = 5 * time.Second

// Worker pulls jobs from the queue and runs them. Workers are
// interchangeable and stateless beyond their id; anything a job does,
// including panicking the executor, is contained and reported as a
// failure of that job only.
type Worker struct {
	id       string
	queue    *queue.Queue
	executor *Executor
	logs     *joblog.Log
	logger   *slog.Logger
	running  atomic.Bool
	shutdown atomic.Bool
}

func newWorker(id string, q *queue.Queue, executor *Executor, logs *joblog.Log, logger *slog.Logger) *Worker {
	return &Worker{
		id:       id,
		queue:    q,
		executor: executor,
		logs:     logs,
		logger:   logger.With("worker_id", id),
	}
}

func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	w.running.Store(true)
	defer w.running.Store(false)
	w.logger.Info("worker started")

	for !w.shutdown.Load() {
		job, ok, err := w.queue.Dequeue(dequeueTimeout)
		if err != nil {
			w.logger.Error("dequeue failed", "err", err)
			continue
		}
		if !ok {
			continue
		}
		w.process(job)
	}

	w.logger.Info("worker stopped")
}

func (w *Worker) process(job models.Job) {
	logger := w.logger.With("job_id", job.ID)
	logger.Info("processing job", "command", job.Command)

	started := time.Now()
	result := w.execute(job)
	finished := time.Now()

	w.record(job, started, finished, result, logger)

	if result.Success {
		if err := w.queue.Complete(job); err != nil {
			logger.Error("record completion failed", "err", err)
		}
		if result.Output != "" {
			logger.Debug("job output", "output", result.Output)
		}
		return
	}

	if err := w.queue.Fail(job, result.Reason); err != nil {
		logger.Error("record failure failed", "err", err)
	}
	if result.Output != "" {
		logger.Debug("job output", "output", result.Output)
	}
}

// execute shields the worker loop from executor panics, converting
// them into an ordinary failure of the current job.
func (w *Worker) execute(job models.Job) (result ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = ExecutionResult{Reason: fmt.Sprintf("worker exception: %v", r)}
		}
	}()
	return w.executor.Execute(context.Background(), job)
}

func (w *Worker) record(job models.Job, started, finished time.Time, result ExecutionResult, logger *slog.Logger) {
	if w.logs == nil {
		return
	}
	entry := joblog.Entry{
		JobID:      job.ID,
		Attempt:    job.Attempts + 1,
		StartedAt:  started,
		FinishedAt: finished,
		Success:    result.Success,
		Message:    result.Reason,
		Output:     result.Output,
	}
	if err := w.logs.Append(context.Background(), entry); err != nil {
		logger.Warn("append execution log failed", "err", err)
	}
}

func (w *Worker) requestShutdown() {
	w.shutdown.Store(true)
}

func (w *Worker) ID() string { return w.id }

func (w *Worker) Running() bool { return w.running.Load() }

func (w *Worker) ShutdownRequested() bool { return w.shutdown.Load() }
