// Package quality computes transcript quality metrics against reference
// text. It backs offline evaluation of enhancement pipelines; nothing in
// the job path depends on it.
package quality

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/lhartmann/scribeq/internal/models"
)

// Report summarizes how a transcript compares to a reference.
type Report struct {
	CER float64 `json:"cer"` // character error rate
	WER float64 `json:"wer"` // word error rate
	// SegmentCompliance is the fraction of segments within the given
	// duration bounds, the property the splitter/merger optimizes for.
	SegmentCompliance float64 `json:"segment_compliance"`
}

// CER computes the character error rate of hypothesis against reference:
// edit distance over reference length. An empty reference yields 0 for an
// empty hypothesis and 1 otherwise.
func CER(reference, hypothesis string) float64 {
	if reference == "" {
		if hypothesis == "" {
			return 0
		}
		return 1
	}
	dist := levenshtein.ComputeDistance(reference, hypothesis)
	return float64(dist) / float64(len([]rune(reference)))
}

// WER computes the word error rate using whitespace tokenization. Words
// are mapped to runes of a private alphabet so the edit distance runs
// over words, not characters.
func WER(reference, hypothesis string) float64 {
	refWords := strings.Fields(reference)
	hypWords := strings.Fields(hypothesis)
	if len(refWords) == 0 {
		if len(hypWords) == 0 {
			return 0
		}
		return 1
	}

	alphabet := make(map[string]rune)
	next := rune(0xE000) // private use area
	encode := func(words []string) string {
		var b strings.Builder
		for _, w := range words {
			r, ok := alphabet[w]
			if !ok {
				r = next
				alphabet[w] = r
				next++
			}
			b.WriteRune(r)
		}
		return b.String()
	}

	dist := levenshtein.ComputeDistance(encode(refWords), encode(hypWords))
	return float64(dist) / float64(len(refWords))
}

// SegmentCompliance reports the fraction of segments whose duration lies
// within [minSeconds, maxSeconds]. An empty list is fully compliant.
func SegmentCompliance(segments []models.Segment, minSeconds, maxSeconds float64) float64 {
	if len(segments) == 0 {
		return 1
	}
	ok := 0
	for _, s := range segments {
		d := s.Duration()
		if d >= minSeconds && d <= maxSeconds {
			ok++
		}
	}
	return float64(ok) / float64(len(segments))
}

// Evaluate builds a full report for a segmented transcript against
// reference text.
func Evaluate(reference string, segments []models.Segment, minSeconds, maxSeconds float64) Report {
	var b strings.Builder
	for i, s := range segments {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.Text)
	}
	hypothesis := b.String()

	return Report{
		CER:               CER(reference, hypothesis),
		WER:               WER(reference, hypothesis),
		SegmentCompliance: SegmentCompliance(segments, minSeconds, maxSeconds),
	}
}
