package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lhartmann/scribeq/internal/models"
)

// Memory is an in-process Store used for single-node deployments and
// tests. It keeps the job:{id}:{kind} keyspace literally, as JSON bytes,
// so the wire schema is exercised even without a database.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
	now  func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
		now:  time.Now,
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Create(ctx context.Context, jobID, model string) error {
	if err := models.ValidateJobID(jobID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := statusKey(jobID)
	if _, ok := m.data[key]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, jobID)
	}

	now := m.now().UTC()
	state := models.JobState{
		Status:    models.JobStatusPending,
		Progress:  0,
		Message:   "created",
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return m.put(key, state)
}

func (m *Memory) Update(ctx context.Context, jobID string, status models.JobStatus, progress int, message string) error {
	if err := models.ValidateJobID(jobID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.getState(jobID)
	if err != nil {
		return err
	}
	if err := validateWrite(current, status, progress); err != nil {
		return fmt.Errorf("%w (job %s)", err, jobID)
	}
	return m.put(statusKey(jobID), applyWrite(current, status, progress, message, m.now().UTC()))
}

func (m *Memory) Get(ctx context.Context, jobID string) (models.JobState, error) {
	if err := models.ValidateJobID(jobID); err != nil {
		return models.JobState{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getState(jobID)
}

func (m *Memory) SetResult(ctx context.Context, jobID string, segments []models.Segment) error {
	if err := models.ValidateJobID(jobID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.getState(jobID)
	if err != nil {
		return err
	}
	if current.Status != models.JobStatusProcessing {
		return fmt.Errorf("%w: result writes require a processing job, got %s", ErrInvalidTransition, current.Status)
	}
	return m.put(resultKey(jobID), models.JobResult{Segments: segments})
}

func (m *Memory) GetResult(ctx context.Context, jobID string) (models.JobResult, error) {
	if err := models.ValidateJobID(jobID); err != nil {
		return models.JobResult{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.data[resultKey(jobID)]
	if !ok {
		return models.JobResult{}, fmt.Errorf("%w: %s", ErrNoResult, jobID)
	}
	var result models.JobResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return models.JobResult{}, err
	}
	return result, nil
}

func (m *Memory) List(ctx context.Context) (map[string]models.JobState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]models.JobState)
	for key, raw := range m.data {
		id, ok := parseStatusKey(key)
		if !ok {
			continue
		}
		var state models.JobState
		if err := json.Unmarshal(raw, &state); err != nil {
			return nil, err
		}
		out[id] = state
	}
	return out, nil
}

func (m *Memory) Heartbeat(ctx context.Context, jobID string, ttl time.Duration) error {
	if err := models.ValidateJobID(jobID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(heartbeatKey(jobID), heartbeat{ExpiresAt: m.now().UTC().Add(ttl)})
}

func (m *Memory) StaleJobs(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stale []string
	for key, raw := range m.data {
		id, ok := parseStatusKey(key)
		if !ok {
			continue
		}
		var state models.JobState
		if err := json.Unmarshal(raw, &state); err != nil {
			return nil, err
		}
		if state.Status != models.JobStatusProcessing {
			continue
		}

		hbRaw, ok := m.data[heartbeatKey(id)]
		if !ok {
			continue
		}
		var hb heartbeat
		if err := json.Unmarshal(hbRaw, &hb); err != nil {
			return nil, err
		}
		if hb.ExpiresAt.Before(now) {
			stale = append(stale, id)
		}
	}
	return stale, nil
}

// getState reads and decodes a status record. Callers hold the lock.
func (m *Memory) getState(jobID string) (models.JobState, error) {
	raw, ok := m.data[statusKey(jobID)]
	if !ok {
		return models.JobState{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	var state models.JobState
	if err := json.Unmarshal(raw, &state); err != nil {
		return models.JobState{}, err
	}
	return state, nil
}

// put encodes and stores a value. Callers hold the lock.
func (m *Memory) put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

// parseStatusKey extracts the job ID from a job:{id}:status key.
func parseStatusKey(key string) (string, bool) {
	if !strings.HasPrefix(key, "job:") || !strings.HasSuffix(key, ":status") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(key, "job:"), ":status"), true
}
