package pipeline

import (
	"context"
	"strings"
	"unicode"

	"github.com/lhartmann/scribeq/internal/models"
)

// SegmentSplitter splits segments exceeding the duration or character
// bounds at the best available natural boundary (punctuation, then
// whitespace, then hard cut) and merges adjacent short segments whose
// union still satisfies both bounds.
type SegmentSplitter struct {
	maxSeconds float64
	maxChars   int
	minSeconds float64
	mods       int
}

// NewSegmentSplitter builds the splitter/merger from validated params.
func NewSegmentSplitter(p Params) *SegmentSplitter {
	return &SegmentSplitter{
		maxSeconds: p.SplitMaxSeconds,
		maxChars:   p.SplitMaxChars,
		minSeconds: p.MergeMinSeconds,
	}
}

func (s *SegmentSplitter) Name() string { return ComponentSplit }

// Modifications reports splits plus merges performed by the last run.
func (s *SegmentSplitter) Modifications() int { return s.mods }

// Process splits oversized segments first, then merges undersized
// neighbours. The splitter works on text and proportional time alone, so
// it runs even when audio analysis is unavailable.
func (s *SegmentSplitter) Process(ctx context.Context, segments []models.Segment, analysis *Analysis) ([]models.Segment, error) {
	s.mods = 0

	split := make([]models.Segment, 0, len(segments))
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		split = append(split, s.splitSegment(seg, 0)...)
	}

	return s.mergeShort(split), nil
}

// compliant reports whether a segment satisfies both bounds.
func (s *SegmentSplitter) compliant(seg models.Segment) bool {
	return seg.Duration() <= s.maxSeconds && len([]rune(seg.Text)) <= s.maxChars
}

// maxSplitDepth bounds recursion for degenerate inputs (for instance a
// one-character segment stretched over minutes of audio).
const maxSplitDepth = 12

func (s *SegmentSplitter) splitSegment(seg models.Segment, depth int) []models.Segment {
	if s.compliant(seg) || depth >= maxSplitDepth {
		return []models.Segment{seg}
	}

	runes := []rune(seg.Text)
	if len(runes) < 2 {
		// Nothing to split textually; halve the time span.
		mid := seg.Start + seg.Duration()/2
		s.mods++
		return append(
			s.splitSegment(models.Segment{Start: seg.Start, End: mid, Text: seg.Text}, depth+1),
			s.splitSegment(models.Segment{Start: mid, End: seg.End, Text: ""}, depth+1)...,
		)
	}

	cut := findCut(runes)
	frac := float64(cut) / float64(len(runes))
	mid := seg.Start + seg.Duration()*frac

	left := models.Segment{
		Start: seg.Start,
		End:   mid,
		Text:  strings.TrimSpace(string(runes[:cut])),
	}
	right := models.Segment{
		Start: mid,
		End:   seg.End,
		Text:  strings.TrimSpace(string(runes[cut:])),
	}

	s.mods++
	return append(s.splitSegment(left, depth+1), s.splitSegment(right, depth+1)...)
}

// splitPunctuation marks characters that end a natural clause.
var splitPunctuation = map[rune]bool{
	'.': true, '!': true, '?': true, ',': true, ';': true, ':': true,
	'。': true, '！': true, '？': true, '，': true, '；': true, '：': true,
	'、': true,
}

// findCut picks the split position in runes: the punctuation boundary
// nearest the middle, else the whitespace nearest the middle, else the
// hard middle. The cut always lands strictly inside the text.
func findCut(runes []rune) int {
	mid := len(runes) / 2

	if idx := nearestMatch(runes, mid, func(r rune) bool { return splitPunctuation[r] }); idx >= 0 {
		// Cut after the punctuation mark.
		return clampCut(idx+1, len(runes))
	}
	if idx := nearestMatch(runes, mid, unicode.IsSpace); idx >= 0 {
		return clampCut(idx, len(runes))
	}
	return clampCut(mid, len(runes))
}

// nearestMatch finds the index closest to mid whose rune satisfies match,
// excluding the very edges of the text. Returns -1 when there is none.
func nearestMatch(runes []rune, mid int, match func(rune) bool) int {
	best := -1
	bestDist := len(runes)
	for i := 1; i < len(runes)-1; i++ {
		if !match(runes[i]) {
			continue
		}
		dist := i - mid
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}

func clampCut(cut, n int) int {
	if cut < 1 {
		return 1
	}
	if cut > n-1 {
		return n - 1
	}
	return cut
}

// mergeShort greedily merges a too-short segment into its successor when
// the union still satisfies both bounds.
func (s *SegmentSplitter) mergeShort(segments []models.Segment) []models.Segment {
	if len(segments) == 0 {
		return segments
	}

	out := make([]models.Segment, 0, len(segments))
	cur := segments[0]
	for _, next := range segments[1:] {
		if cur.Duration() < s.minSeconds || next.Duration() < s.minSeconds {
			merged := models.Segment{
				Start: cur.Start,
				End:   next.End,
				Text:  joinText(cur.Text, next.Text),
			}
			if s.compliant(merged) {
				cur = merged
				s.mods++
				continue
			}
		}
		out = append(out, cur)
		cur = next
	}
	return append(out, cur)
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
