package workers

import (
	"context"
	"time"

	"github.com/glowdesk/automations/pkg/logger"
)

// JobDispatcher defines the interface for dispatching due jobs
type JobDispatcher interface {
	DispatchDue(ctx context.Context, limit, workers int) (int, error)
}

// DispatcherWorker polls the job queue for due jobs and hands them to the
// action dispatcher. Delays are parked rows, not blocked goroutines; this
// loop is the poll-or-wake half of that design.
type DispatcherWorker struct {
	dispatcher    JobDispatcher
	logger        *logger.Logger
	checkInterval time.Duration
	batchSize     int
	concurrency   int
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// NewDispatcherWorker creates a new dispatcher worker
func NewDispatcherWorker(
	dispatcher JobDispatcher,
	log *logger.Logger,
	checkInterval time.Duration,
	batchSize int,
	concurrency int,
) *DispatcherWorker {
	if checkInterval == 0 {
		checkInterval = 15 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if concurrency <= 0 {
		concurrency = 8
	}

	return &DispatcherWorker{
		dispatcher:    dispatcher,
		logger:        log,
		checkInterval: checkInterval,
		batchSize:     batchSize,
		concurrency:   concurrency,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start starts the dispatcher worker in the background
func (w *DispatcherWorker) Start(ctx context.Context) {
	w.logger.Info("Starting dispatcher worker",
		logger.String("interval", w.checkInterval.String()),
		logger.Int("batch_size", w.batchSize),
		logger.Int("concurrency", w.concurrency),
	)

	go w.run(ctx)
}

// Stop stops the dispatcher worker gracefully
func (w *DispatcherWorker) Stop() {
	w.logger.Info("Stopping dispatcher worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info("Dispatcher worker stopped")
}

// run is the main worker loop
func (w *DispatcherWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.dispatchDue(ctx)

	for {
		select {
		case <-ticker.C:
			w.dispatchDue(ctx)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *DispatcherWorker) dispatchDue(ctx context.Context) {
	for {
		dispatched, err := w.dispatcher.DispatchDue(ctx, w.batchSize, w.concurrency)
		if err != nil {
			w.logger.Errorf("Failed to dispatch due jobs: %v", err)
			return
		}

		if dispatched > 0 {
			w.logger.Infof("Dispatched batch of %d due jobs", dispatched)
		}

		// Keep draining full batches; an empty or partial batch means the
		// queue is caught up until the next tick.
		if dispatched < w.batchSize {
			return
		}

		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
	}
}
