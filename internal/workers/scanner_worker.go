package workers

import (
	"context"
	"time"

	"github.com/glowdesk/automations/pkg/logger"
)

// TriggerScanner defines the interface for the periodic trigger scan
type TriggerScanner interface {
	Scan(ctx context.Context, now time.Time) error
}

// ScannerWorker drives the periodic evaluation of scan-based triggers
// (birthdays, inactive clients, no-shows).
type ScannerWorker struct {
	scanner      TriggerScanner
	logger       *logger.Logger
	scanInterval time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// NewScannerWorker creates a new scanner worker
func NewScannerWorker(scanner TriggerScanner, log *logger.Logger, scanInterval time.Duration) *ScannerWorker {
	if scanInterval == 0 {
		scanInterval = 1 * time.Hour
	}

	return &ScannerWorker{
		scanner:      scanner,
		logger:       log,
		scanInterval: scanInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start starts the scanner worker in the background
func (w *ScannerWorker) Start(ctx context.Context) {
	w.logger.Info("Starting trigger scanner worker",
		logger.String("interval", w.scanInterval.String()),
	)

	go w.run(ctx)
}

// Stop stops the scanner worker gracefully
func (w *ScannerWorker) Stop() {
	w.logger.Info("Stopping trigger scanner worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info("Trigger scanner worker stopped")
}

// run is the main worker loop
func (w *ScannerWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.scanInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.scan(ctx)

	for {
		select {
		case <-ticker.C:
			w.scan(ctx)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *ScannerWorker) scan(ctx context.Context) {
	w.logger.Debug("Running scan-based trigger pass")

	if err := w.scanner.Scan(ctx, time.Now()); err != nil {
		w.logger.Errorf("Trigger scan failed: %v", err)
	}
}
