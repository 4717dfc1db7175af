package pipeline

import (
	"context"
	"errors"

	"github.com/lhartmann/scribeq/internal/models"
)

// ErrNoAudioAnalysis is returned by signal-dependent components when the
// audio could not be decoded. The pipeline's fail-open policy turns this
// into a skip rather than a job failure.
var ErrNoAudioAnalysis = errors.New("audio analysis unavailable")

// Energy thresholds per aggressiveness level 0 (least) to 3 (most).
// Frames below the threshold count as silence.
var vadThresholds = [4]float64{0.002, 0.005, 0.010, 0.020}

// VoiceActivityFilter drops segments whose audio span is silence: models
// routinely hallucinate text over long quiet runs, and those segments
// carry no speech. Transcript order is never altered, only thinned.
type VoiceActivityFilter struct {
	threshold  float64
	minSilence float64
	mods       int
}

// NewVoiceActivityFilter builds the filter from validated params.
func NewVoiceActivityFilter(p Params) *VoiceActivityFilter {
	return &VoiceActivityFilter{
		threshold:  vadThresholds[p.VADAggressiveness],
		minSilence: p.MinSilenceSeconds,
	}
}

func (v *VoiceActivityFilter) Name() string { return ComponentVAD }

// Modifications reports how many segments the last run removed.
func (v *VoiceActivityFilter) Modifications() int { return v.mods }

// Process returns a new list with silence-run segments removed. A segment
// is removed when it spans at least the minimum silence duration and the
// voiced fraction of its frames is negligible.
func (v *VoiceActivityFilter) Process(ctx context.Context, segments []models.Segment, analysis *Analysis) ([]models.Segment, error) {
	if analysis == nil || analysis.Energy == nil {
		return nil, ErrNoAudioAnalysis
	}

	v.mods = 0
	out := make([]models.Segment, 0, len(segments))
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seg.Duration() >= v.minSilence && v.voicedFraction(analysis, seg) < 0.05 {
			v.mods++
			continue
		}
		out = append(out, seg)
	}
	return out, nil
}

// voicedFraction measures the share of frames within the segment whose
// energy exceeds the silence threshold.
func (v *VoiceActivityFilter) voicedFraction(analysis *Analysis, seg models.Segment) float64 {
	e := analysis.Energy
	total := 0
	voiced := 0
	for t := seg.Start; t < seg.End; t += e.FrameDur {
		total++
		if e.At(t) >= v.threshold {
			voiced++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(voiced) / float64(total)
}
