package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lhartmann/scribeq/internal/models"
	"github.com/lhartmann/scribeq/internal/store"
)

// Watchdog periodically sweeps for processing jobs whose heartbeat
// expired and fails them, so a crashed worker never leaves a job stuck
// at "transcribing" forever.
type Watchdog struct {
	store    store.Store
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	started  uint32
	stopCh   chan chan struct{}
}

var _ Worker = (*Watchdog)(nil)

// NewWatchdog creates a watchdog sweeping at the given interval.
func NewWatchdog(s store.Store, interval time.Duration, logger *slog.Logger) *Watchdog {
	return &Watchdog{
		store:    s,
		interval: interval,
		logger:   logger.With("component", "watchdog"),
		now:      time.Now,
		stopCh:   make(chan chan struct{}, 1),
	}
}

// Started reports whether the sweep loop is running.
func (w *Watchdog) Started() bool {
	return atomic.LoadUint32(&w.started) != 0
}

// Stop signals the loop to exit and waits up to wait for it.
func (w *Watchdog) Stop(wait time.Duration) {
	if w.Started() {
		ch := make(chan struct{})
		w.stopCh <- ch
		select {
		case <-ch:
		case <-time.After(wait):
		}
	}
}

// Start launches the sweep loop if it is not already running.
func (w *Watchdog) Start() {
	if atomic.SwapUint32(&w.started, 1) == 1 {
		return
	}
	go func() {
		defer atomic.StoreUint32(&w.started, 0)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case ch := <-w.stopCh:
				ch <- struct{}{}
				return
			case <-ticker.C:
				w.Sweep(context.Background())
			}
		}
	}()
}

// Sweep fails every processing job whose heartbeat expired. Exposed for
// tests and for a one-shot sweep at daemon startup.
func (w *Watchdog) Sweep(ctx context.Context) {
	stale, err := w.store.StaleJobs(ctx, w.now())
	if err != nil {
		w.logger.Error("stale job scan failed", "error", err)
		return
	}
	for _, id := range stale {
		err := store.WithRetry(ctx, func() error {
			return w.store.Update(ctx, id, models.JobStatusFailed, 0, "worker lost")
		})
		if err != nil {
			w.logger.Error("failing stale job failed", "job_id", id, "error", err)
			continue
		}
		w.logger.Warn("failed stale job", "job_id", id)
	}
}
