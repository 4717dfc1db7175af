package models

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"pending to processing", JobStatusPending, JobStatusProcessing, true},
		{"pending to failed", JobStatusPending, JobStatusFailed, true},
		{"pending to completed skips processing", JobStatusPending, JobStatusCompleted, false},
		{"processing to completed", JobStatusProcessing, JobStatusCompleted, true},
		{"processing to failed", JobStatusProcessing, JobStatusFailed, true},
		{"processing back to pending", JobStatusProcessing, JobStatusPending, false},
		{"completed is terminal", JobStatusCompleted, JobStatusProcessing, false},
		{"failed is terminal", JobStatusFailed, JobStatusPending, false},
		{"completed to completed", JobStatusCompleted, JobStatusCompleted, false},
		{"processing to processing", JobStatusProcessing, JobStatusProcessing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestValidateJobID(t *testing.T) {
	valid := uuid.New().String()

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"fresh v4 uuid", valid, false},
		{"empty", "", true},
		{"path traversal", "../../../etc/passwd", true},
		{"uppercase hex", strings.ToUpper(valid), true},
		{"braced form", "{" + valid + "}", true},
		{"urn form", "urn:uuid:" + valid, true},
		{"v1 uuid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", true},
		{"too short", "abc123", true},
		{"embedded separator", valid[:8] + "/" + valid[9:], true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJobID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateJobID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestStageProgression(t *testing.T) {
	stages := []Stage{StageQueued, StageLoadingModel, StageTranscribing, StageEnhancing, StageDone}

	last := -1
	for i, st := range stages {
		if st.Progress <= last {
			t.Errorf("stage %d progress %d not increasing (previous %d)", i, st.Progress, last)
		}
		last = st.Progress
	}

	if StageQueued.Status != JobStatusPending {
		t.Errorf("queued stage status = %s, want pending", StageQueued.Status)
	}
	if StageDone.Status != JobStatusCompleted || StageDone.Progress != 100 {
		t.Errorf("done stage = %+v, want completed at 100", StageDone)
	}
}

func TestValidateSegments(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		wantErr  bool
	}{
		{"empty", nil, false},
		{"single valid", []Segment{{Start: 0, End: 1, Text: "a"}}, false},
		{"sorted non-overlapping", []Segment{{0, 1, "a"}, {1, 2, "b"}, {2.5, 3, "c"}}, false},
		{"zero duration", []Segment{{1, 1, "a"}}, true},
		{"inverted", []Segment{{2, 1, "a"}}, true},
		{"out of order", []Segment{{2, 3, "a"}, {0, 1, "b"}}, true},
		{"overlapping", []Segment{{0, 2, "a"}, {1, 3, "b"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSegments(tt.segments)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSegments() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
