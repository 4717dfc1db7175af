package pipeline

import (
	"context"

	"github.com/lhartmann/scribeq/internal/models"
)

// TimestampRefiner snaps segment boundaries to nearby energy minima.
// Model timestamps are often off by tens of milliseconds; true boundaries
// sit in the quiet between words. Each boundary is searched within a
// symmetric window and moved only when a strictly quieter frame exists;
// a boundary never leaves its window.
type TimestampRefiner struct {
	window float64 // seconds to each side
	mods   int
}

// NewTimestampRefiner builds the refiner from validated params.
func NewTimestampRefiner(p Params) *TimestampRefiner {
	return &TimestampRefiner{
		window: float64(p.RefineWindowMS) / 1000.0,
	}
}

func (r *TimestampRefiner) Name() string { return ComponentRefine }

// Modifications reports how many boundaries the last run moved.
func (r *TimestampRefiner) Modifications() int { return r.mods }

// Process refines each segment's start and end boundary independently.
// Adjustments that would invert a segment or overlap a neighbour are
// discarded, keeping the output list invariant-clean.
func (r *TimestampRefiner) Process(ctx context.Context, segments []models.Segment, analysis *Analysis) ([]models.Segment, error) {
	if analysis == nil || analysis.Energy == nil {
		return nil, ErrNoAudioAnalysis
	}

	r.mods = 0
	out := make([]models.Segment, len(segments))
	copy(out, segments)

	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if refined, moved := r.refineBoundary(analysis, out[i].Start); moved {
			prevEnd := 0.0
			if i > 0 {
				prevEnd = out[i-1].End
			}
			if refined < out[i].End && refined >= prevEnd {
				out[i].Start = refined
				r.mods++
			}
		}

		if refined, moved := r.refineBoundary(analysis, out[i].End); moved {
			nextStart := analysis.Duration
			if i+1 < len(out) {
				nextStart = segments[i+1].Start
			}
			if refined > out[i].Start && refined <= nextStart {
				out[i].End = refined
				r.mods++
			}
		}
	}

	return out, nil
}

// refineBoundary searches [t-window, t+window] for the frame with the
// lowest energy. It reports a move only when that frame is strictly
// quieter than the frame at t.
func (r *TimestampRefiner) refineBoundary(analysis *Analysis, t float64) (float64, bool) {
	e := analysis.Energy

	lo := t - r.window
	if lo < 0 {
		lo = 0
	}
	hi := t + r.window
	if hi > analysis.Duration {
		hi = analysis.Duration
	}

	current := e.At(t)
	best := current
	bestT := t
	for cand := lo; cand <= hi; cand += e.FrameDur {
		if v := e.At(cand); v < best {
			best = v
			bestT = cand
		}
	}

	if best >= current || bestT == t {
		return t, false
	}
	return bestT, true
}
