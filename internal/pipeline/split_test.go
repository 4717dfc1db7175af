package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhartmann/scribeq/internal/models"
)

func TestSplitter_SplitsLongDuration(t *testing.T) {
	splitter := NewSegmentSplitter(DefaultParams())

	in := []models.Segment{{Start: 0, End: 20, Text: "first clause, second clause, third clause here"}}
	out, err := splitter.Process(context.Background(), in, nil)
	require.NoError(t, err)

	require.Greater(t, len(out), 1)
	for i, seg := range out {
		assert.LessOrEqual(t, seg.Duration(), 7.0, "segment %d too long", i)
	}
	require.NoError(t, models.ValidateSegments(out))
	assert.Positive(t, splitter.Modifications())
}

func TestSplitter_PrefersPunctuation(t *testing.T) {
	splitter := NewSegmentSplitter(DefaultParams())

	in := []models.Segment{{Start: 0, End: 10, Text: "one two three, four five six"}}
	out, err := splitter.Process(context.Background(), in, nil)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "one two three,", out[0].Text)
	assert.Equal(t, "four five six", out[1].Text)
}

func TestSplitter_SplitsLongText(t *testing.T) {
	params := DefaultParams()
	params.SplitMaxChars = 20
	splitter := NewSegmentSplitter(params)

	in := []models.Segment{{Start: 0, End: 5, Text: "alpha beta gamma delta epsilon zeta"}}
	out, err := splitter.Process(context.Background(), in, nil)
	require.NoError(t, err)

	require.Greater(t, len(out), 1)
	for _, seg := range out {
		assert.LessOrEqual(t, len([]rune(seg.Text)), 20)
	}
}

func TestSplitter_HardCutWithoutBoundaries(t *testing.T) {
	params := DefaultParams()
	params.SplitMaxChars = 10
	splitter := NewSegmentSplitter(params)

	in := []models.Segment{{Start: 0, End: 4, Text: "abcdefghijklmnopqrst"}}
	out, err := splitter.Process(context.Background(), in, nil)
	require.NoError(t, err)

	require.Greater(t, len(out), 1)
	require.NoError(t, models.ValidateSegments(out))
	var rebuilt strings.Builder
	for _, seg := range out {
		rebuilt.WriteString(seg.Text)
	}
	assert.Equal(t, "abcdefghijklmnopqrst", rebuilt.String())
}

func TestSplitter_MergesShortNeighbours(t *testing.T) {
	splitter := NewSegmentSplitter(DefaultParams())

	in := []models.Segment{
		{Start: 0, End: 0.6, Text: "uh"},
		{Start: 0.6, End: 1.2, Text: "huh"},
		{Start: 1.5, End: 5, Text: "a full length sentence lives here"},
	}
	out, err := splitter.Process(context.Background(), in, nil)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "uh huh", out[0].Text)
	assert.InDelta(t, 1.2, out[0].End, 1e-9)
}

func TestSplitter_MergeRespectsBounds(t *testing.T) {
	params := DefaultParams()
	params.SplitMaxChars = 8
	splitter := NewSegmentSplitter(params)

	// Merging would exceed max chars, so both survive despite being short.
	in := []models.Segment{
		{Start: 0, End: 0.5, Text: "abcdefg"},
		{Start: 0.5, End: 0.9, Text: "hijklmn"},
	}
	out, err := splitter.Process(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

// TestSplitter_Compliance feeds 500 synthetic segments with varied lengths
// and checks that at least 95% of the output satisfies both bounds.
func TestSplitter_Compliance(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}

	var in []models.Segment
	cursor := 0.0
	for i := 0; i < 500; i++ {
		dur := 0.5 + rng.Float64()*19.5 // 0.5s .. 20s
		var sb strings.Builder
		n := 1 + rng.Intn(60)
		for w := 0; w < n; w++ {
			if w > 0 {
				if rng.Intn(8) == 0 {
					sb.WriteString(", ")
				} else {
					sb.WriteString(" ")
				}
			}
			sb.WriteString(words[rng.Intn(len(words))])
		}
		in = append(in, models.Segment{Start: cursor, End: cursor + dur, Text: sb.String()})
		cursor += dur + 0.1
	}

	splitter := NewSegmentSplitter(DefaultParams())
	out, err := splitter.Process(context.Background(), in, nil)
	require.NoError(t, err)
	require.NoError(t, models.ValidateSegments(out))

	compliant := 0
	for _, seg := range out {
		if seg.Duration() <= 7.0 && len([]rune(seg.Text)) <= 200 {
			compliant++
		}
	}
	ratio := float64(compliant) / float64(len(out))
	assert.GreaterOrEqualf(t, ratio, 0.95, "only %d/%d segments compliant", compliant, len(out))
}

func TestSplitter_MeanDurationInRange(t *testing.T) {
	// A long monologue split down should land segments mostly in 1-7s.
	text := strings.TrimSuffix(strings.Repeat("this is a spoken clause, ", 40), ", ")
	in := []models.Segment{{Start: 0, End: 120, Text: text}}

	splitter := NewSegmentSplitter(DefaultParams())
	out, err := splitter.Process(context.Background(), in, nil)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	var total float64
	for _, seg := range out {
		total += seg.Duration()
	}
	mean := total / float64(len(out))
	assert.Greater(t, mean, 1.0, "mean duration %.2f", mean)
	assert.LessOrEqual(t, mean, 7.0, "mean duration %.2f", mean)
}

func TestSplitter_EmptyInput(t *testing.T) {
	splitter := NewSegmentSplitter(DefaultParams())
	out, err := splitter.Process(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFindCut(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string // left half after cut
	}{
		{"punctuation near middle", "hello there, my friend", "hello there,"},
		{"space fallback", "hello there friend", "hello there"},
		{"hard cut", "abcdefgh", "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runes := []rune(tt.text)
			cut := findCut(runes)
			got := strings.TrimSpace(string(runes[:cut]))
			assert.Equal(t, tt.want, got, fmt.Sprintf("cut=%d", cut))
		})
	}
}
