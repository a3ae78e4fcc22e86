package worker

import (
	"sync"

	"github.com/paincake00/geotrack/internal/entity"
	"github.com/paincake00/geotrack/internal/metrics"
)

// Queue is the unbounded FIFO between the ingest path and the worker. Any
// number of producers may enqueue; the worker is the only consumer.
type Queue struct {
	mu    sync.Mutex
	items []entity.PendingWork
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(item entity.PendingWork) {
	q.mu.Lock()
	q.items = append(q.items, item)
	n := len(q.items)
	q.mu.Unlock()
	metrics.QueueDepth.Set(float64(n))
}

// Dequeue removes the oldest item. ok is false when the queue is empty.
func (q *Queue) Dequeue() (item entity.PendingWork, ok bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return entity.PendingWork{}, false
	}
	item = q.items[0]
	q.items[0] = entity.PendingWork{}
	q.items = q.items[1:]
	n := len(q.items)
	q.mu.Unlock()
	metrics.QueueDepth.Set(float64(n))
	return item, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
