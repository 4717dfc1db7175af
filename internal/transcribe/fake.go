package transcribe

import (
	"context"

	"github.com/lhartmann/scribeq/internal/models"
)

// Fake is a scripted TranscriptionService for tests and local dry runs.
type Fake struct {
	Family   string
	Segments []models.Segment
	Err      error
	Delay    func(ctx context.Context) error // optional blocking hook
	Calls    int
}

// Transcribe returns the scripted segments or error.
func (f *Fake) Transcribe(ctx context.Context, audioPath, language string) ([]models.Segment, error) {
	f.Calls++
	if f.Delay != nil {
		if err := f.Delay(ctx); err != nil {
			return nil, err
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]models.Segment, len(f.Segments))
	copy(out, f.Segments)
	return out, nil
}

// ModelInfo reports the fake's family.
func (f *Fake) ModelInfo() ModelInfo {
	return ModelInfo{Family: f.Family, Runtime: "fake"}
}
