// Package store persists job status, results, and worker heartbeats.
// Keys follow the job:{id}:{kind} schema with JSON values; job IDs are
// validated as UUIDv4 before any key or path is built from them. The
// store serializes concurrent writes to distinct jobs; a single logical
// writer per job is a caller contract, not something the store
// arbitrates.
package store

import (
	"context"
	"time"

	"github.com/lhartmann/scribeq/internal/models"
)

// Store is the job-state persistence contract.
type Store interface {
	// Create initializes a pending job record. Fails with ErrJobExists
	// if the ID is already present.
	Create(ctx context.Context, jobID, model string) error

	// Update applies a status/progress/message write. Fails with
	// ErrNotFound for unknown jobs, ErrJobTerminal once the job reached
	// completed or failed, and ErrInvalidTransition or
	// ErrProgressRegression when the write violates the state machine.
	// Every update refreshes updated_at; created_at is never touched.
	Update(ctx context.Context, jobID string, status models.JobStatus, progress int, message string) error

	// Get returns the job's status record.
	Get(ctx context.Context, jobID string) (models.JobState, error)

	// SetResult stores the final segment list. Only valid while the job
	// is processing, immediately before the completing update.
	SetResult(ctx context.Context, jobID string, segments []models.Segment) error

	// GetResult returns the stored result.
	GetResult(ctx context.Context, jobID string) (models.JobResult, error)

	// List returns every job keyed by ID.
	List(ctx context.Context) (map[string]models.JobState, error)

	// Heartbeat refreshes the owning worker's liveness key for ttl.
	Heartbeat(ctx context.Context, jobID string, ttl time.Duration) error

	// StaleJobs returns the IDs of processing jobs whose heartbeat
	// expired before now. These are jobs whose worker died mid-flight.
	StaleJobs(ctx context.Context, now time.Time) ([]string, error)
}

// Key schema for the underlying keyspace.
func statusKey(jobID string) string    { return "job:" + jobID + ":status" }
func resultKey(jobID string) string    { return "job:" + jobID + ":result" }
func heartbeatKey(jobID string) string { return "job:" + jobID + ":heartbeat" }

// heartbeat is the TTL record backing worker liveness.
type heartbeat struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// validateWrite applies the shared state-machine checks for Update.
func validateWrite(current models.JobState, status models.JobStatus, progress int) error {
	if current.Status.Terminal() {
		return ErrJobTerminal
	}
	if !models.ValidTransition(current.Status, status) {
		return ErrInvalidTransition
	}
	// Progress is monotonic while the job is alive. A failing update
	// freezes progress at whatever was last reached, so it is exempt.
	if status != models.JobStatusFailed && progress < current.Progress {
		return ErrProgressRegression
	}
	return nil
}

// applyWrite produces the next state record for a validated update.
func applyWrite(current models.JobState, status models.JobStatus, progress int, message string, now time.Time) models.JobState {
	next := current
	next.Status = status
	next.Message = message
	next.UpdatedAt = now
	if status == models.JobStatusFailed {
		// Keep the last reached progress.
		next.Progress = current.Progress
	} else {
		next.Progress = progress
	}
	return next
}
