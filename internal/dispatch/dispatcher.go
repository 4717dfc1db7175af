// Package dispatch accepts transcription requests and turns them into
// queued jobs. Everything that can be rejected is rejected here,
// synchronously; once Submit returns an ID the job exists, is routed,
// and is on a queue with a live consumer.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lhartmann/scribeq/internal/models"
	"github.com/lhartmann/scribeq/internal/pipeline"
	"github.com/lhartmann/scribeq/internal/queue"
	"github.com/lhartmann/scribeq/internal/router"
	"github.com/lhartmann/scribeq/internal/store"
)

// Sentinel errors surfaced to the submitter.
var (
	ErrMissingAudio = errors.New("audio path is required")
)

// Request is one transcription submission.
type Request struct {
	AudioPath string `json:"audio_path"`
	Model     string `json:"model"`    // whisper-fast, whisper-large, or auto
	Language  string `json:"language"` // optional BCP-47 hint
	// Pipeline overrides the daemon's default enhancement pipeline when
	// non-nil.
	Pipeline *pipeline.Config `json:"pipeline,omitempty"`
}

// Receipt is what the submitter gets back on success.
type Receipt struct {
	JobID  string `json:"job_id"`
	Queue  string `json:"queue"`
	Reason string `json:"reason"`
}

// Dispatcher validates, routes, records, and enqueues jobs.
type Dispatcher struct {
	store           store.Store
	broker          *queue.Broker
	defaultModel    string
	defaultPipeline pipeline.Config
	logger          *slog.Logger
}

// New creates a dispatcher. defaultModel is used when a request omits the
// model field; defaultPipeline when it omits the pipeline.
func New(s store.Store, b *queue.Broker, defaultModel string, defaultPipeline pipeline.Config, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:           s,
		broker:          b,
		defaultModel:    defaultModel,
		defaultPipeline: defaultPipeline,
		logger:          logger.With("component", "dispatch"),
	}
}

// Submit validates the request and places a new job on a queue. Every
// failure is returned synchronously; no job record is left behind for a
// rejected request, and a job that cannot be enqueued is failed in place
// rather than silently dropped.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (Receipt, error) {
	if req.AudioPath == "" {
		return Receipt{}, ErrMissingAudio
	}

	model := req.Model
	if model == "" {
		model = d.defaultModel
	}
	if !router.ValidModelChoice(model) {
		return Receipt{}, fmt.Errorf("%w: %q", router.ErrUnknownModel, model)
	}

	plCfg := d.defaultPipeline
	if req.Pipeline != nil {
		plCfg = *req.Pipeline
	}
	if err := plCfg.Validate(); err != nil {
		return Receipt{}, fmt.Errorf("invalid pipeline: %w", err)
	}

	decision, err := router.Route(model, req.Language, d.broker.Health())
	if err != nil {
		return Receipt{}, err
	}
	q, err := d.broker.Get(decision.Queue)
	if err != nil {
		return Receipt{}, err
	}

	jobID := models.NewJobID()
	if err := store.WithRetry(ctx, func() error {
		return d.store.Create(ctx, jobID, decision.Queue)
	}); err != nil {
		return Receipt{}, fmt.Errorf("create job: %w", err)
	}

	err = q.Enqueue(queue.JobMessage{
		JobID:     jobID,
		AudioPath: req.AudioPath,
		Language:  req.Language,
		Pipeline:  plCfg,
	})
	if err != nil {
		// The record exists but nothing will ever process it; fail it so
		// the submitter and any later Get see an honest state.
		d.failJob(ctx, jobID, "queue full")
		return Receipt{}, err
	}

	st := models.StageQueued
	if err := store.WithRetry(ctx, func() error {
		return d.store.Update(ctx, jobID, st.Status, st.Progress, st.Message)
	}); err != nil {
		d.logger.Warn("queued-stage update failed", "job_id", jobID, "error", err)
	}

	d.logger.Info("job dispatched",
		"job_id", jobID,
		"queue", decision.Queue,
		"routing_reason", decision.Reason,
		"language", req.Language)

	return Receipt{JobID: jobID, Queue: decision.Queue, Reason: decision.Reason}, nil
}

func (d *Dispatcher) failJob(ctx context.Context, jobID, message string) {
	err := store.WithRetry(ctx, func() error {
		return d.store.Update(ctx, jobID, models.JobStatusFailed, 0, message)
	})
	if err != nil {
		d.logger.Error("failing undispatchable job failed", "job_id", jobID, "error", err)
	}
}
