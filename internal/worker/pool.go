// Package worker runs the per-model-family consumers that take jobs off
// their queue and drive them through the five-stage progress contract.
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lhartmann/scribeq/internal/modelcache"
	"github.com/lhartmann/scribeq/internal/models"
	"github.com/lhartmann/scribeq/internal/queue"
	"github.com/lhartmann/scribeq/internal/store"
	"github.com/lhartmann/scribeq/internal/transcribe"
)

// Worker is the lifecycle shared by pools and the watchdog.
type Worker interface {
	Start()
	Stop(wait time.Duration)
	Started() bool
}

// PoolConfig wires a pool to its collaborators.
type PoolConfig struct {
	Family       string // model family, equal to the queue name
	Queue        *queue.Queue
	Broker       *queue.Broker
	Store        store.Store
	Service      transcribe.Service
	Models       *modelcache.Manager
	JobRoot      string
	HeartbeatTTL time.Duration
	Logger       *slog.Logger
}

// Pool consumes one model family's queue. One goroutine per pool keeps
// ordering within a family trivially FIFO; run more pools for more
// families, not more goroutines per queue.
type Pool struct {
	cfg     PoolConfig
	logger  *slog.Logger
	started uint32
	stopCh  chan chan struct{}
}

var _ Worker = (*Pool)(nil)

// NewPool creates a pool for one model family.
func NewPool(cfg PoolConfig) *Pool {
	return &Pool{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "worker", "family", cfg.Family),
		stopCh: make(chan chan struct{}, 1),
	}
}

// Started reports whether the consume loop is running.
func (p *Pool) Started() bool {
	return atomic.LoadUint32(&p.started) != 0
}

// Stop signals the loop to exit and waits up to wait for it.
func (p *Pool) Stop(wait time.Duration) {
	if p.Started() {
		ch := make(chan struct{})
		p.stopCh <- ch
		select {
		case <-ch:
		case <-time.After(wait):
		}
	}
}

// Start launches the consume loop if it is not already running.
func (p *Pool) Start() {
	if atomic.SwapUint32(&p.started, 1) == 1 {
		return
	}
	p.cfg.Broker.SetLive(p.cfg.Family, true)
	go func() {
		defer func() {
			p.cfg.Broker.SetLive(p.cfg.Family, false)
			atomic.StoreUint32(&p.started, 0)
		}()
		p.logger.Info("worker pool started")
		for {
			select {
			case ch := <-p.stopCh:
				ch <- struct{}{}
				p.logger.Info("worker pool stopped")
				return
			case msg, ok := <-p.cfg.Queue.Dequeue():
				if !ok {
					p.logger.Info("queue closed, worker pool exiting")
					return
				}
				p.handle(context.Background(), msg)
			}
		}
	}()
}

// handle drives one job through loading, transcription, enhancement, and
// completion. A panic in any stage fails the job instead of killing the
// loop.
func (p *Pool) handle(ctx context.Context, msg queue.JobMessage) {
	log := p.logger.With("job_id", msg.JobID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing job", "panic", r)
			p.fail(ctx, msg.JobID, "internal error")
		}
	}()

	// Stage 2: the job is ours, load the model.
	if err := p.advance(ctx, msg.JobID, models.StageLoadingModel); err != nil {
		// Most commonly the watchdog already failed this job.
		log.Warn("cannot take job", "error", err)
		return
	}

	stopHeartbeat := p.startHeartbeat(msg.JobID)
	defer stopHeartbeat()

	if _, err := p.cfg.Models.Acquire(p.cfg.Family); err != nil {
		log.Error("model load failed", "error", err)
		p.fail(ctx, msg.JobID, "model unavailable")
		return
	}

	// Stage 3: transcribe.
	if err := p.advance(ctx, msg.JobID, models.StageTranscribing); err != nil {
		log.Warn("job no longer writable", "error", err)
		return
	}
	segments, err := p.cfg.Service.Transcribe(ctx, msg.AudioPath, msg.Language)
	if err != nil {
		log.Error("transcription failed", "error", err)
		p.fail(ctx, msg.JobID, transcribe.SanitizedMessage(err))
		return
	}

	// Stage 4: enhancement. The pipeline fails open, so this stage can
	// degrade but never fail the job.
	if err := p.advance(ctx, msg.JobID, models.StageEnhancing); err != nil {
		log.Warn("job no longer writable", "error", err)
		return
	}
	segments = p.enhance(ctx, msg, segments, log)

	// Stage 5: persist and complete.
	if err := store.WithRetry(ctx, func() error {
		return p.cfg.Store.SetResult(ctx, msg.JobID, segments)
	}); err != nil {
		log.Error("storing result failed", "error", err)
		p.fail(ctx, msg.JobID, "storing result failed")
		return
	}
	if p.cfg.JobRoot != "" {
		if _, err := store.WriteResultFile(p.cfg.JobRoot, msg.JobID, segments); err != nil {
			log.Warn("writing result file failed", "error", err)
		}
	}
	if err := p.advance(ctx, msg.JobID, models.StageDone); err != nil {
		log.Error("completing job failed", "error", err)
		return
	}
	log.Info("job completed",
		"segments", len(segments),
		"duration", time.Since(start).Round(time.Millisecond))
}

// enhance runs the configured pipeline and logs per-component metrics.
func (p *Pool) enhance(ctx context.Context, msg queue.JobMessage, segments []models.Segment, log *slog.Logger) []models.Segment {
	pl, err := msg.Pipeline.Build(log)
	if err != nil {
		// The dispatcher validated this config; a build failure here means
		// the message was corrupted in flight. Skip enhancement.
		log.Error("pipeline build failed, skipping enhancement", "error", err)
		return segments
	}

	enhanced, metrics := pl.Process(ctx, segments, msg.AudioPath)
	for _, m := range metrics {
		if m.Error != "" {
			log.Warn("enhancement component failed",
				"enhancement_component", m.Name, "error", m.Error)
			continue
		}
		if m.Ran {
			log.Debug("enhancement component ran",
				"enhancement_component", m.Name,
				"modifications", m.Modifications,
				"duration", m.Duration.Round(time.Microsecond))
		}
	}
	return enhanced
}

// advance applies one stage of the progress contract with retries.
func (p *Pool) advance(ctx context.Context, jobID string, stage models.Stage) error {
	return store.WithRetry(ctx, func() error {
		return p.cfg.Store.Update(ctx, jobID, stage.Status, stage.Progress, stage.Message)
	})
}

// fail marks the job failed. Progress stays where it was; the store
// enforces that.
func (p *Pool) fail(ctx context.Context, jobID, message string) {
	if err := store.WithRetry(ctx, func() error {
		return p.cfg.Store.Update(ctx, jobID, models.JobStatusFailed, 0, message)
	}); err != nil {
		p.logger.Error("failing job failed", "job_id", jobID, "error", err)
	}
}

// startHeartbeat keeps the job's liveness key fresh while processing.
// Refreshing at a third of the TTL tolerates two missed beats before the
// watchdog declares the worker dead.
func (p *Pool) startHeartbeat(jobID string) (stop func()) {
	if p.cfg.HeartbeatTTL <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	beat := func() {
		if err := p.cfg.Store.Heartbeat(ctx, jobID, p.cfg.HeartbeatTTL); err != nil && ctx.Err() == nil {
			p.logger.Warn("heartbeat failed", "job_id", jobID, "error", err)
		}
	}

	go func() {
		defer close(done)
		beat()
		ticker := time.NewTicker(p.cfg.HeartbeatTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				beat()
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
