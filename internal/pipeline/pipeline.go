// Package pipeline implements the ordered, fail-open enhancement chain
// applied to raw transcription segments: voice-activity filtering,
// timestamp refinement, and segment splitting/merging.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/lhartmann/scribeq/internal/audio"
	"github.com/lhartmann/scribeq/internal/models"
)

// Analysis is the decoded audio view shared by components in one run.
type Analysis struct {
	Energy   *audio.Energy
	Duration float64
}

// LoadAnalysis decodes a WAV file and computes 10ms frame energy.
func LoadAnalysis(path string) (*Analysis, error) {
	pcm, err := audio.ReadWAV(path)
	if err != nil {
		return nil, err
	}
	return &Analysis{
		Energy:   pcm.FrameEnergy(0.01),
		Duration: pcm.Duration(),
	}, nil
}

// Component transforms a segment list. Implementations must return a new
// list rather than mutating the input, and every output segment must keep
// start < end with no overlaps.
type Component interface {
	Name() string
	Process(ctx context.Context, segments []models.Segment, analysis *Analysis) ([]models.Segment, error)
}

// ComponentMetrics records one component's contribution to a run. Metrics
// are owned by the run and discarded after being logged with the job.
type ComponentMetrics struct {
	Name          string        `json:"name"`
	Ran           bool          `json:"ran"`
	Duration      time.Duration `json:"duration_ns"`
	Modifications int           `json:"modifications"`
	Error         string        `json:"error,omitempty"`
}

// modCounter is implemented by components that track how many segments
// they removed, split, or merged in their last run.
type modCounter interface {
	Modifications() int
}

// Pipeline executes components strictly in configured order, feeding each
// component's output to the next.
type Pipeline struct {
	components   []Component
	logger       *slog.Logger
	loadAnalysis func(path string) (*Analysis, error)
}

// New creates a pipeline over the given components.
func New(components []Component, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		components:   components,
		logger:       logger,
		loadAnalysis: LoadAnalysis,
	}
}

// Components returns the configured component names in execution order.
func (p *Pipeline) Components() []string {
	names := make([]string, len(p.components))
	for i, c := range p.components {
		names[i] = c.Name()
	}
	return names
}

// Process runs the chain over segments. Failures are isolated per
// component: when a component errors, its effect and every downstream
// component's effect are discarded and the last known-good list is
// returned. The job never fails because of enhancement; callers always
// get either enhanced or unenhanced-but-correct segments.
func (p *Pipeline) Process(ctx context.Context, segments []models.Segment, audioPath string) ([]models.Segment, []ComponentMetrics) {
	metrics := make([]ComponentMetrics, 0, len(p.components))
	current := make([]models.Segment, len(segments))
	copy(current, segments)

	if len(p.components) == 0 {
		return current, metrics
	}

	analysis, err := p.loadAnalysis(audioPath)
	if err != nil {
		// Components that need the signal will fail individually and be
		// skipped; text-only components still run.
		p.logger.Warn("audio analysis unavailable, enhancement degraded",
			"audio_path", audioPath, "error", err)
		analysis = nil
	}

	for i, comp := range p.components {
		start := time.Now()
		out, err := comp.Process(ctx, current, analysis)
		m := ComponentMetrics{
			Name:     comp.Name(),
			Ran:      true,
			Duration: time.Since(start),
		}

		if err == nil {
			if vErr := models.ValidateSegments(out); vErr != nil {
				err = vErr
			}
		}
		if err != nil {
			m.Error = err.Error()
			metrics = append(metrics, m)
			p.logger.Error("enhancement component failed, keeping last good segments",
				"component", comp.Name(), "error", err)
			// Downstream components are marked not-run.
			for _, rest := range p.components[i+1:] {
				metrics = append(metrics, ComponentMetrics{Name: rest.Name(), Ran: false})
			}
			return current, metrics
		}

		if mc, ok := comp.(modCounter); ok {
			m.Modifications = mc.Modifications()
		}
		metrics = append(metrics, m)
		current = out
	}

	return current, metrics
}
