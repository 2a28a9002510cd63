package queue

import (
	"sync"
	"time"

	"github.com/shivensaigal/QueueCtl/pkg/models"
)

// pendingQueue is the FIFO hand-off between enqueuers and workers. It
// holds value snapshots of pending jobs; the store remains the durable
// reflection. Consumers block with a timeout when empty.
type pendingQueue struct {
	mu     sync.Mutex
	items  []models.Job
	signal chan struct{}
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{signal: make(chan struct{}, 1)}
}

func (q *pendingQueue) Offer(job models.Job) {
	q.mu.Lock()
	q.items = append(q.items, job)
	q.mu.Unlock()
	q.notify()
}

// Poll removes the oldest item, waiting up to timeout for one to
// arrive. The second return is false on timeout.
func (q *pendingQueue) Poll(timeout time.Duration) (models.Job, bool) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				// Wake another waiter; the signal channel holds at
				// most one token, so a burst of offers can leave
				// items without a pending wakeup.
				q.notify()
			}
			return job, true
		}
		q.mu.Unlock()

		wait := time.Until(deadline)
		if wait <= 0 {
			return models.Job{}, false
		}
		timer := time.NewTimer(wait)
		select {
		case <-q.signal:
			timer.Stop()
		case <-timer.C:
			return models.Job{}, false
		}
	}
}

// Remove drops the first snapshot with the given id, if present.
// Best-effort: an item already handed to a worker is out of reach.
func (q *pendingQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.items {
		if job.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

func (q *pendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *pendingQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
