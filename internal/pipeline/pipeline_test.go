package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhartmann/scribeq/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// appendMarker returns a component that tags every segment's text, making
// execution order observable.
func appendMarker(name, marker string) Component {
	return ComponentFunc(name, func(_ context.Context, segments []models.Segment, _ *Analysis) ([]models.Segment, error) {
		out := make([]models.Segment, len(segments))
		for i, seg := range segments {
			out[i] = seg
			out[i].Text = seg.Text + marker
		}
		return out, nil
	})
}

func failing(name string) Component {
	return ComponentFunc(name, func(_ context.Context, _ []models.Segment, _ *Analysis) ([]models.Segment, error) {
		return nil, errors.New("boom")
	})
}

func noAnalysis(p *Pipeline) *Pipeline {
	p.loadAnalysis = func(string) (*Analysis, error) {
		return nil, errors.New("no audio in tests")
	}
	return p
}

func TestPipeline_OrderPreservation(t *testing.T) {
	p := noAnalysis(New([]Component{
		appendMarker("a", "-A"),
		appendMarker("b", "-B"),
		appendMarker("c", "-C"),
	}, testLogger()))

	in := []models.Segment{{Start: 0, End: 1, Text: "x"}}
	out, metrics := p.Process(context.Background(), in, "audio.wav")

	require.Len(t, out, 1)
	assert.Equal(t, "x-A-B-C", out[0].Text)

	require.Len(t, metrics, 3)
	for _, m := range metrics {
		assert.True(t, m.Ran)
		assert.Empty(t, m.Error)
	}

	// Input list untouched.
	assert.Equal(t, "x", in[0].Text)
}

func TestPipeline_FailOpen(t *testing.T) {
	p := noAnalysis(New([]Component{
		appendMarker("a", "-A"),
		failing("b"),
		appendMarker("c", "-C"),
	}, testLogger()))

	out, metrics := p.Process(context.Background(), []models.Segment{{Start: 0, End: 1, Text: "x"}}, "audio.wav")

	// B's and C's effects discarded; A's output is the last known-good list.
	require.Len(t, out, 1)
	assert.Equal(t, "x-A", out[0].Text)

	require.Len(t, metrics, 3)
	assert.True(t, metrics[0].Ran)
	assert.True(t, metrics[1].Ran)
	assert.Equal(t, "boom", metrics[1].Error)
	assert.False(t, metrics[2].Ran)
}

func TestPipeline_FirstComponentFails(t *testing.T) {
	p := noAnalysis(New([]Component{failing("a"), appendMarker("b", "-B")}, testLogger()))

	in := []models.Segment{{Start: 0, End: 1, Text: "raw"}}
	out, metrics := p.Process(context.Background(), in, "audio.wav")

	// Unenhanced-but-correct beats failed.
	assert.Equal(t, in, out)
	require.Len(t, metrics, 2)
	assert.False(t, metrics[1].Ran)
}

func TestPipeline_RejectsInvariantViolation(t *testing.T) {
	corrupt := ComponentFunc("bad", func(_ context.Context, _ []models.Segment, _ *Analysis) ([]models.Segment, error) {
		return []models.Segment{{Start: 5, End: 2, Text: "inverted"}}, nil
	})
	p := noAnalysis(New([]Component{corrupt}, testLogger()))

	in := []models.Segment{{Start: 0, End: 1, Text: "ok"}}
	out, metrics := p.Process(context.Background(), in, "audio.wav")

	assert.Equal(t, in, out)
	require.Len(t, metrics, 1)
	assert.NotEmpty(t, metrics[0].Error)
}

func TestPipeline_Empty(t *testing.T) {
	p := Noop(testLogger())
	in := []models.Segment{{Start: 0, End: 1, Text: "x"}}
	out, metrics := p.Process(context.Background(), in, "missing.wav")
	assert.Equal(t, in, out)
	assert.Empty(t, metrics)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults ok", func(c *Config) {}, ""},
		{"unknown component", func(c *Config) { c.Components = []string{"vad", "sparkle"} }, "unknown enhancement component"},
		{"aggressiveness range", func(c *Config) { c.Params.VADAggressiveness = 7 }, "vad_aggressiveness"},
		{"window range", func(c *Config) { c.Params.RefineWindowMS = 0 }, "refine_window_ms"},
		{"max chars range", func(c *Config) { c.Params.SplitMaxChars = -1 }, "split_max_chars"},
		{"merge above split", func(c *Config) { c.Params.MergeMinSeconds = 30 }, "merge_min_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Components: []string{ComponentVAD, ComponentRefine, ComponentSplit},
				Params:     DefaultParams(),
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_BuildOrder(t *testing.T) {
	cfg := Config{
		Components: []string{ComponentSplit, ComponentVAD},
		Params:     DefaultParams(),
	}
	p, err := cfg.Build(testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"split", "vad"}, p.Components())
}

func TestConfig_BuildRejectsInvalid(t *testing.T) {
	cfg := Config{Components: []string{"nope"}, Params: DefaultParams()}
	_, err := cfg.Build(testLogger())
	assert.Error(t, err)
}
