package store

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/lhartmann/scribeq/internal/models"
)

// Surreal is the SurrealDB-backed Store. Every record lives in the
// job_record table with the job:{id}:{kind} key as its record ID, so the
// keyspace matches what Memory keeps in its map. State-machine checks run
// client-side; a single logical writer per job is the caller contract
// that makes the read-validate-write sequence safe.
type Surreal struct {
	client *Client
	now    func() time.Time
}

// NewSurreal wraps a connected client as a job store.
func NewSurreal(client *Client) *Surreal {
	return &Surreal{client: client, now: time.Now}
}

var _ Store = (*Surreal)(nil)

// statusRecord is the persisted shape of a status key.
type statusRecord struct {
	JobID     string    `json:"job_id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r statusRecord) state() models.JobState {
	return models.JobState{
		Status:    models.JobStatus(r.Status),
		Progress:  r.Progress,
		Message:   r.Message,
		Model:     r.Model,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type resultRecord struct {
	JobID    string           `json:"job_id"`
	Kind     string           `json:"kind"`
	Segments []models.Segment `json:"segments"`
}

type heartbeatRecord struct {
	JobID     string    `json:"job_id"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Surreal) Create(ctx context.Context, jobID, model string) error {
	if err := models.ValidateJobID(jobID); err != nil {
		return err
	}

	existing, err := s.readStatus(ctx, jobID)
	if err == nil && existing != nil {
		return fmt.Errorf("%w: %s", ErrJobExists, jobID)
	}
	if err != nil {
		return err
	}

	now := s.now().UTC()
	rec := statusRecord{
		JobID:     jobID,
		Kind:      "status",
		Status:    string(models.JobStatusPending),
		Progress:  0,
		Message:   "created",
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.upsertStatus(ctx, jobID, rec, true)
}

func (s *Surreal) Update(ctx context.Context, jobID string, status models.JobStatus, progress int, message string) error {
	if err := models.ValidateJobID(jobID); err != nil {
		return err
	}

	rec, err := s.readStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}

	current := rec.state()
	if err := validateWrite(current, status, progress); err != nil {
		return fmt.Errorf("%w (job %s)", err, jobID)
	}
	next := applyWrite(current, status, progress, message, s.now().UTC())

	updated := *rec
	updated.Status = string(next.Status)
	updated.Progress = next.Progress
	updated.Message = next.Message
	updated.UpdatedAt = next.UpdatedAt
	return s.upsertStatus(ctx, jobID, updated, false)
}

func (s *Surreal) Get(ctx context.Context, jobID string) (models.JobState, error) {
	if err := models.ValidateJobID(jobID); err != nil {
		return models.JobState{}, err
	}

	rec, err := s.readStatus(ctx, jobID)
	if err != nil {
		return models.JobState{}, err
	}
	if rec == nil {
		return models.JobState{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return rec.state(), nil
}

func (s *Surreal) SetResult(ctx context.Context, jobID string, segments []models.Segment) error {
	if err := models.ValidateJobID(jobID); err != nil {
		return err
	}

	rec, err := s.readStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if models.JobStatus(rec.Status) != models.JobStatusProcessing {
		return fmt.Errorf("%w: result writes require a processing job, got %s", ErrInvalidTransition, rec.Status)
	}

	_, err = surrealdb.Query[any](ctx, s.client.db, `
		UPSERT type::record("job_record", $key) CONTENT $content
	`, map[string]any{
		"key": resultKey(jobID),
		"content": resultRecord{
			JobID:    jobID,
			Kind:     "result",
			Segments: segments,
		},
	})
	if err != nil {
		return wrapQueryError(fmt.Errorf("set result: %w", err))
	}
	return nil
}

func (s *Surreal) GetResult(ctx context.Context, jobID string) (models.JobResult, error) {
	if err := models.ValidateJobID(jobID); err != nil {
		return models.JobResult{}, err
	}

	results, err := surrealdb.Query[[]resultRecord](ctx, s.client.db, `
		SELECT * FROM type::record("job_record", $key)
	`, map[string]any{"key": resultKey(jobID)})
	if err != nil {
		return models.JobResult{}, wrapQueryError(fmt.Errorf("get result: %w", err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return models.JobResult{}, fmt.Errorf("%w: %s", ErrNoResult, jobID)
	}
	return models.JobResult{Segments: (*results)[0].Result[0].Segments}, nil
}

func (s *Surreal) List(ctx context.Context) (map[string]models.JobState, error) {
	results, err := surrealdb.Query[[]statusRecord](ctx, s.client.db, `
		SELECT * FROM job_record WHERE kind = "status"
	`, nil)
	if err != nil {
		return nil, wrapQueryError(fmt.Errorf("list jobs: %w", err))
	}

	out := make(map[string]models.JobState)
	if results == nil || len(*results) == 0 {
		return out, nil
	}
	for _, rec := range (*results)[0].Result {
		out[rec.JobID] = rec.state()
	}
	return out, nil
}

func (s *Surreal) Heartbeat(ctx context.Context, jobID string, ttl time.Duration) error {
	if err := models.ValidateJobID(jobID); err != nil {
		return err
	}

	_, err := surrealdb.Query[any](ctx, s.client.db, `
		UPSERT type::record("job_record", $key) CONTENT $content
	`, map[string]any{
		"key": heartbeatKey(jobID),
		"content": heartbeatRecord{
			JobID:     jobID,
			Kind:      "heartbeat",
			ExpiresAt: s.now().UTC().Add(ttl),
		},
	})
	if err != nil {
		return wrapQueryError(fmt.Errorf("heartbeat: %w", err))
	}
	return nil
}

func (s *Surreal) StaleJobs(ctx context.Context, now time.Time) ([]string, error) {
	results, err := surrealdb.Query[[]heartbeatRecord](ctx, s.client.db, `
		SELECT * FROM job_record WHERE kind = "heartbeat" AND expires_at < $now
	`, map[string]any{"now": now})
	if err != nil {
		return nil, wrapQueryError(fmt.Errorf("stale jobs: %w", err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}

	var stale []string
	for _, hb := range (*results)[0].Result {
		rec, err := s.readStatus(ctx, hb.JobID)
		if err != nil {
			return nil, err
		}
		if rec != nil && models.JobStatus(rec.Status) == models.JobStatusProcessing {
			stale = append(stale, hb.JobID)
		}
	}
	return stale, nil
}

// readStatus fetches a status record, or nil if the job does not exist.
func (s *Surreal) readStatus(ctx context.Context, jobID string) (*statusRecord, error) {
	results, err := surrealdb.Query[[]statusRecord](ctx, s.client.db, `
		SELECT * FROM type::record("job_record", $key)
	`, map[string]any{"key": statusKey(jobID)})
	if err != nil {
		return nil, wrapQueryError(fmt.Errorf("read status: %w", err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// upsertStatus writes a status record. create distinguishes the initial
// insert from subsequent updates for error wrapping only.
func (s *Surreal) upsertStatus(ctx context.Context, jobID string, rec statusRecord, create bool) error {
	_, err := surrealdb.Query[any](ctx, s.client.db, `
		UPSERT type::record("job_record", $key) CONTENT $content
	`, map[string]any{
		"key":     statusKey(jobID),
		"content": rec,
	})
	if err != nil {
		verb := "update"
		if create {
			verb = "create"
		}
		return wrapQueryError(fmt.Errorf("%s status: %w", verb, err))
	}
	return nil
}
