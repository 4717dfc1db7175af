package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a transcription job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ValidTransition enforces the one-directional job state machine:
// pending -> processing -> {completed | failed}. Pending jobs may also
// fail directly (e.g. the worker dies before loading a model).
func ValidTransition(from, to JobStatus) bool {
	if from == to {
		return !from.Terminal()
	}
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// JobState is the persisted status record for one job, stored under
// job:{id}:status.
type JobState struct {
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobResult is the persisted result record for one job, stored under
// job:{id}:result.
type JobResult struct {
	Segments []Segment `json:"segments"`
}

// Stage is one step of the fixed five-stage progress contract.
type Stage struct {
	Progress int
	Status   JobStatus
	Message  string
}

// The five-stage progression every job follows. A failing job stays at
// whatever progress it last reached and transitions to failed instead.
var (
	StageQueued       = Stage{Progress: 10, Status: JobStatusPending, Message: "queued"}
	StageLoadingModel = Stage{Progress: 20, Status: JobStatusProcessing, Message: "loading model"}
	StageTranscribing = Stage{Progress: 40, Status: JobStatusProcessing, Message: "transcribing"}
	StageEnhancing    = Stage{Progress: 80, Status: JobStatusProcessing, Message: "post-processing / enhancing"}
	StageDone         = Stage{Progress: 100, Status: JobStatusCompleted, Message: "done"}
)

// NewJobID returns a fresh collision-resistant job identifier.
func NewJobID() string {
	return uuid.New().String()
}

// ValidateJobID rejects any identifier that is not a canonical UUIDv4.
// Job IDs are used verbatim in storage keys and filesystem paths, so a
// malformed ID is a client error, never something to sanitize.
func ValidateJobID(id string) error {
	u, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", id, err)
	}
	// uuid.Parse accepts several encodings; require the canonical form.
	if u.String() != id {
		return fmt.Errorf("invalid job id %q: not canonical", id)
	}
	if u.Version() != 4 || u.Variant() != uuid.RFC4122 {
		return fmt.Errorf("invalid job id %q: not a v4 UUID", id)
	}
	return nil
}
