package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/paincake00/geotrack/internal/entity"
)

const (
	DefaultInterval    = time.Second
	DefaultRetryDelay  = time.Second
	DefaultItemTimeout = 30 * time.Second
)

// Processor handles one work item.
type Processor interface {
	Process(ctx context.Context, item entity.PendingWork) error
}

// Warmer loads whatever the processor needs before the first item.
type Warmer interface {
	WarmLocations(ctx context.Context) (int, error)
}

// Worker drains the queue in the background: it processes every pending
// item, sleeps for Interval and repeats until the context is cancelled.
type Worker struct {
	Queue      *Queue
	Processor  Processor
	Warmer     Warmer
	Interval   time.Duration
	RetryDelay time.Duration

	// ItemTimeout bounds a single Process call. Shutdown does not cut an
	// item short, only this timeout does.
	ItemTimeout time.Duration
	Logger      *slog.Logger
}

func New(q *Queue, p Processor, warmer Warmer, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{
		Queue:       q,
		Processor:   p,
		Warmer:      warmer,
		Interval:    interval,
		RetryDelay:  DefaultRetryDelay,
		ItemTimeout: DefaultItemTimeout,
		Logger:      logger,
	}
}

// Start blocks until ctx is cancelled. Items are processed only after the
// warm-up has succeeded.
func (w *Worker) Start(ctx context.Context) {
	w.Logger.Info("worker_start", "interval", w.Interval)
	if !w.warmUp(ctx) {
		w.Logger.Info("worker_stop")
		return
	}

	for {
		w.drain(ctx)

		select {
		case <-ctx.Done():
			w.Logger.Info("worker_stop", "pending", w.Queue.Len())
			return
		case <-time.After(w.Interval):
		}
	}
}

func (w *Worker) warmUp(ctx context.Context) bool {
	if w.Warmer == nil {
		return true
	}
	for attempt := 1; ; attempt++ {
		_, err := w.Warmer.WarmLocations(ctx)
		if err == nil {
			return true
		}
		w.Logger.Error("location_cache_load_error", "attempt", attempt, "err", err)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(w.RetryDelay):
		}
	}
}

// drain processes items until the queue is empty or ctx is cancelled. An
// item already dequeued runs to completion. A failed item is logged and
// dropped.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		item, ok := w.Queue.Dequeue()
		if !ok {
			return
		}
		if err := w.process(ctx, item); err != nil {
			w.Logger.Error("tracking_process_error",
				"id", item.FixID,
				"user_id", item.UserID,
				"geohash", item.Geohash,
				"err", err,
			)
		}
	}
}

func (w *Worker) process(ctx context.Context, item entity.PendingWork) error {
	timeout := w.ItemTimeout
	if timeout <= 0 {
		timeout = DefaultItemTimeout
	}
	itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return w.Processor.Process(itemCtx, item)
}
