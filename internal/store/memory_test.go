package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhartmann/scribeq/internal/models"
)

func newTestMemory(t *testing.T) (*Memory, *time.Time) {
	t.Helper()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMemory_CreateAndGet(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()
	id := models.NewJobID()

	require.NoError(t, m.Create(ctx, id, "whisper-fast"))

	state, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, state.Status)
	assert.Equal(t, 0, state.Progress)
	assert.Equal(t, "whisper-fast", state.Model)
	assert.Equal(t, state.CreatedAt, state.UpdatedAt)
}

func TestMemory_CreateDuplicate(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()
	id := models.NewJobID()

	require.NoError(t, m.Create(ctx, id, "whisper-fast"))
	assert.ErrorIs(t, m.Create(ctx, id, "whisper-fast"), ErrJobExists)
}

func TestMemory_RejectsInvalidID(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	for _, id := range []string{"", "../etc/passwd", "not-a-uuid", "JOB-123"} {
		assert.Error(t, m.Create(ctx, id, "whisper-fast"), "id %q", id)
		_, err := m.Get(ctx, id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestMemory_GetUnknown(t *testing.T) {
	m, _ := newTestMemory(t)
	_, err := m.Get(context.Background(), models.NewJobID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_LifecycleHappyPath(t *testing.T) {
	m, now := newTestMemory(t)
	ctx := context.Background()
	id := models.NewJobID()

	require.NoError(t, m.Create(ctx, id, "whisper-large"))

	*now = now.Add(time.Second)
	require.NoError(t, m.Update(ctx, id, models.JobStatusPending, 10, "queued"))

	*now = now.Add(time.Second)
	require.NoError(t, m.Update(ctx, id, models.JobStatusProcessing, 20, "loading model"))
	require.NoError(t, m.Update(ctx, id, models.JobStatusProcessing, 40, "transcribing"))
	require.NoError(t, m.Update(ctx, id, models.JobStatusProcessing, 80, "enhancing"))

	require.NoError(t, m.SetResult(ctx, id, []models.Segment{{Start: 0, End: 1, Text: "hi"}}))
	require.NoError(t, m.Update(ctx, id, models.JobStatusCompleted, 100, "done"))

	state, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, state.Status)
	assert.Equal(t, 100, state.Progress)
	assert.True(t, state.UpdatedAt.After(state.CreatedAt))

	result, err := m.GetResult(ctx, id)
	require.NoError(t, err)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, "hi", result.Segments[0].Text)
}

func TestMemory_TerminalIsImmutable(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()
	id := models.NewJobID()

	require.NoError(t, m.Create(ctx, id, "whisper-fast"))
	require.NoError(t, m.Update(ctx, id, models.JobStatusProcessing, 20, "loading model"))
	require.NoError(t, m.Update(ctx, id, models.JobStatusFailed, 0, "decode error"))

	err := m.Update(ctx, id, models.JobStatusProcessing, 40, "transcribing")
	assert.ErrorIs(t, err, ErrJobTerminal)
	err = m.Update(ctx, id, models.JobStatusCompleted, 100, "done")
	assert.ErrorIs(t, err, ErrJobTerminal)
}

func TestMemory_InvalidTransition(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()
	id := models.NewJobID()

	require.NoError(t, m.Create(ctx, id, "whisper-fast"))

	// pending cannot jump straight to completed
	err := m.Update(ctx, id, models.JobStatusCompleted, 100, "done")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMemory_ProgressNeverRegresses(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()
	id := models.NewJobID()

	require.NoError(t, m.Create(ctx, id, "whisper-fast"))
	require.NoError(t, m.Update(ctx, id, models.JobStatusProcessing, 40, "transcribing"))

	err := m.Update(ctx, id, models.JobStatusProcessing, 20, "loading model")
	assert.ErrorIs(t, err, ErrProgressRegression)
}

func TestMemory_FailureFreezesProgress(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()
	id := models.NewJobID()

	require.NoError(t, m.Create(ctx, id, "whisper-fast"))
	require.NoError(t, m.Update(ctx, id, models.JobStatusProcessing, 40, "transcribing"))
	require.NoError(t, m.Update(ctx, id, models.JobStatusFailed, 0, "model crashed"))

	state, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, state.Status)
	assert.Equal(t, 40, state.Progress, "failure keeps last reached progress")
	assert.Equal(t, "model crashed", state.Message)
}

func TestMemory_SetResultRequiresProcessing(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()
	id := models.NewJobID()

	require.NoError(t, m.Create(ctx, id, "whisper-fast"))
	err := m.SetResult(ctx, id, []models.Segment{{Start: 0, End: 1, Text: "x"}})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMemory_GetResultMissing(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()
	id := models.NewJobID()

	require.NoError(t, m.Create(ctx, id, "whisper-fast"))
	_, err := m.GetResult(ctx, id)
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestMemory_List(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	a, b := models.NewJobID(), models.NewJobID()
	require.NoError(t, m.Create(ctx, a, "whisper-fast"))
	require.NoError(t, m.Create(ctx, b, "whisper-large"))
	require.NoError(t, m.Update(ctx, b, models.JobStatusProcessing, 20, "loading model"))

	jobs, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, models.JobStatusPending, jobs[a].Status)
	assert.Equal(t, models.JobStatusProcessing, jobs[b].Status)
}

func TestMemory_StaleJobs(t *testing.T) {
	m, now := newTestMemory(t)
	ctx := context.Background()

	live, stale, pending := models.NewJobID(), models.NewJobID(), models.NewJobID()
	for _, id := range []string{live, stale, pending} {
		require.NoError(t, m.Create(ctx, id, "whisper-fast"))
	}
	require.NoError(t, m.Update(ctx, live, models.JobStatusProcessing, 20, "loading model"))
	require.NoError(t, m.Update(ctx, stale, models.JobStatusProcessing, 20, "loading model"))

	require.NoError(t, m.Heartbeat(ctx, live, time.Minute))
	require.NoError(t, m.Heartbeat(ctx, stale, time.Second))
	require.NoError(t, m.Heartbeat(ctx, pending, time.Second))

	got, err := m.StaleJobs(ctx, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{stale}, got, "only expired processing jobs are stale")
}

func TestMemory_HeartbeatRefreshExtends(t *testing.T) {
	m, now := newTestMemory(t)
	ctx := context.Background()
	id := models.NewJobID()

	require.NoError(t, m.Create(ctx, id, "whisper-fast"))
	require.NoError(t, m.Update(ctx, id, models.JobStatusProcessing, 20, "loading model"))
	require.NoError(t, m.Heartbeat(ctx, id, 30*time.Second))

	*now = now.Add(20 * time.Second)
	require.NoError(t, m.Heartbeat(ctx, id, 30*time.Second))

	got, err := m.StaleJobs(ctx, now.Add(25*time.Second))
	require.NoError(t, err)
	assert.Empty(t, got)
}
