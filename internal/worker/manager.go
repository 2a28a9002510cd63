package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shivensaigal/QueueCtl/internal/config"
	"github.com/shivensaigal/QueueCtl/internal/joblog"
	"github.com/shivensaigal/QueueCtl/internal/queue"
)

const (
	workerStopGrace = 30 * time.Second
	tickerStopGrace = 5 * time.Second
)

// WorkerStatus is a point-in-time view of one worker's flags.
type WorkerStatus struct {
	ID                string
	Running           bool
	ShutdownRequested bool
}

// Manager owns the worker pool and the retry ticker. Start is
// idempotent by flag; Stop signals every worker, then waits out the
// grace windows before abandoning stragglers (an abandoned worker's
// job stays in processing and is reconciled at next startup).
type Manager struct {
	queue  *queue.Queue
	cfg    *config.Config
	logs   *joblog.Log
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	workers  []*Worker
	executor *Executor
	stopTick chan struct{}
	nextID   int

	wg       sync.WaitGroup
	tickerWG sync.WaitGroup
}

func NewManager(q *queue.Queue, cfg *config.Config, logs *joblog.Log, logger *slog.Logger) *Manager {
	return &Manager{
		queue:  q,
		cfg:    cfg,
		logs:   logs,
		logger: logger,
	}
}

// Start spawns count workers (the configured count when count <= 0)
// and the retry ticker. A second Start while running is a warning
// no-op.
func (m *Manager) Start(count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.logger.Warn("worker manager is already running", "workers", len(m.workers))
		return nil
	}
	if count <= 0 {
		count = m.cfg.WorkerCount
	}

	if err := m.queue.Initialize(); err != nil {
		return err
	}

	m.running = true
	m.executor = NewExecutor(time.Duration(m.cfg.JobTimeoutSeconds) * time.Second)
	m.stopTick = make(chan struct{})

	for i := 0; i < count; i++ {
		m.spawnLocked()
	}

	interval := time.Duration(m.cfg.RetryCheckIntervalSeconds) * time.Second
	m.tickerWG.Add(1)
	go m.runRetryTicker(interval)

	m.logger.Info("worker manager started", "workers", count, "retry_interval", interval)
	return nil
}

// Stop requests shutdown from every worker and the ticker, waiting up
// to the grace windows for them to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.logger.Warn("worker manager is not running")
		m.mu.Unlock()
		return
	}
	m.running = false
	workers := m.workers
	m.workers = nil
	close(m.stopTick)
	m.mu.Unlock()

	for _, w := range workers {
		w.requestShutdown()
	}

	if !waitTimeout(&m.wg, workerStopGrace) {
		m.logger.Warn("workers did not finish within the grace period; abandoning them")
	}
	if !waitTimeout(&m.tickerWG, tickerStopGrace) {
		m.logger.Warn("retry scheduler did not finish within the grace period")
	}
	m.logger.Info("worker manager stopped")
}

// AddWorkers spawns additional workers sharing the same queue. Only
// valid while running.
func (m *Manager) AddWorkers(count int) error {
	if count < 1 {
		return errors.New("worker count must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return errors.New("worker manager is not running")
	}
	for i := 0; i < count; i++ {
		m.spawnLocked()
	}
	m.logger.Info("added workers", "count", count, "total", len(m.workers))
	return nil
}

func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

func (m *Manager) ActiveWorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, w := range m.workers {
		if w.Running() {
			active++
		}
	}
	return active
}

func (m *Manager) Status() []WorkerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WorkerStatus, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, WorkerStatus{
			ID:                w.ID(),
			Running:           w.Running(),
			ShutdownRequested: w.ShutdownRequested(),
		})
	}
	return out
}

func (m *Manager) spawnLocked() {
	m.nextID++
	w := newWorker(fmt.Sprintf("worker-%d", m.nextID), m.queue, m.executor, m.logs, m.logger)
	m.workers = append(m.workers, w)
	m.wg.Add(1)
	go w.run(&m.wg)
}

// runRetryTicker drives ProcessRetries on a fixed delay: the timer is
// re-armed only after a tick finishes, so ticks never overlap and a
// slow tick pushes the next one out rather than stacking up.
func (m *Manager) runRetryTicker(interval time.Duration) {
	defer m.tickerWG.Done()
	m.logger.Info("retry scheduler started", "interval", interval)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-m.stopTick:
			m.logger.Info("retry scheduler stopped")
			return
		case <-timer.C:
			if n, err := m.queue.ProcessRetries(time.Now()); err != nil {
				m.logger.Error("retry processing failed", "err", err)
			} else if n > 0 {
				m.logger.Debug("requeued jobs for retry", "count", n)
			}
			timer.Reset(interval)
		}
	}
}

func waitTimeout(wg *sync.WaitGroup, grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}
