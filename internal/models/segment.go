// Package models defines the data structures shared across the scribeq
// orchestrator: transcription segments, job state, and stage progression.
package models

import (
	"fmt"
	"sort"
)

// Segment is a timestamped span of transcribed text. Start and End are
// seconds from the beginning of the audio source.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Valid reports whether the segment satisfies the start < end invariant.
func (s Segment) Valid() bool {
	return s.Start < s.End
}

// ValidateSegments checks the invariants every segment list handed between
// pipeline stages must satisfy: each segment has start < end, the list is
// sorted by start ascending, and no two segments overlap.
func ValidateSegments(segments []Segment) error {
	for i, seg := range segments {
		if !seg.Valid() {
			return fmt.Errorf("segment %d: start %.3f >= end %.3f", i, seg.Start, seg.End)
		}
		if i > 0 {
			prev := segments[i-1]
			if seg.Start < prev.Start {
				return fmt.Errorf("segment %d: out of order (start %.3f < previous start %.3f)", i, seg.Start, prev.Start)
			}
			if seg.Start < prev.End {
				return fmt.Errorf("segment %d: overlaps previous (start %.3f < previous end %.3f)", i, seg.Start, prev.End)
			}
		}
	}
	return nil
}

// SortSegments orders segments by start time ascending. It returns a new
// slice; segment lists are treated as immutable between pipeline stages.
func SortSegments(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	copy(out, segments)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}
