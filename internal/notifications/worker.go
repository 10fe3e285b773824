package notifications

import (
	"context"
	"log/slog"
	"sync"
)

// WorkerConfig contains delivery worker configuration.
type WorkerConfig struct {
	NumWorkers int
	QueueSize  int
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		NumWorkers: 8,
		QueueSize:  256,
	}
}

// Worker owns the delivery queue: a bounded channel of notification ids
// consumed by a fixed pool of goroutines running the orchestrator. Each id
// has exactly one active delivery task; callers must not re-enqueue an id
// that is still in flight.
type Worker struct {
	config WorkerConfig
	repo   Repository
	orch   *Orchestrator

	queue  chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a delivery worker.
func NewWorker(config WorkerConfig, repo Repository, orch *Orchestrator) *Worker {
	if config.NumWorkers <= 0 {
		config.NumWorkers = DefaultWorkerConfig().NumWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultWorkerConfig().QueueSize
	}

	return &Worker{
		config: config,
		repo:   repo,
		orch:   orch,
		queue:  make(chan string, config.QueueSize),
	}
}

// Start launches the worker pool and requeues notifications left in a
// non-terminal status by a previous run.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	slog.Info("starting delivery workers",
		"workers", w.config.NumWorkers,
		"queue_size", w.config.QueueSize,
	)

	w.requeueIncomplete(ctx)

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
}

// Stop cancels in-flight tasks at their next suspension point and waits for
// the pool to drain. Interrupted notifications stay in their last persisted
// status and are requeued on the next start.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	slog.Info("delivery workers stopped")
}

// Enqueue hands a notification id to the delivery pool. Returns
// ErrQueueFull instead of blocking when the queue is saturated.
func (w *Worker) Enqueue(id string) error {
	select {
	case w.queue <- id:
		recordQueueDepth(len(w.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-w.queue:
			recordQueueDepth(len(w.queue))
			w.orch.Deliver(ctx, id)
		}
	}
}

func (w *Worker) requeueIncomplete(ctx context.Context) {
	ids, err := w.repo.ListIncomplete(ctx, w.config.QueueSize)
	if err != nil {
		slog.Error("list incomplete notifications", "error", err)
		return
	}

	var requeued int
	for _, id := range ids {
		if err := w.Enqueue(id); err != nil {
			slog.Warn("requeue skipped, queue full", "id", id)
			break
		}
		requeued++
	}

	if requeued > 0 {
		slog.Info("requeued incomplete notifications", "count", requeued)
	}
}
