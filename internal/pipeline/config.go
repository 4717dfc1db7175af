package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lhartmann/scribeq/internal/models"
)

// Component names accepted in a pipeline configuration.
const (
	ComponentVAD    = "vad"
	ComponentRefine = "refine"
	ComponentSplit  = "split"
)

// Params are the flat per-component parameters carried with a job.
type Params struct {
	VADAggressiveness int     `json:"vad_aggressiveness" yaml:"vad_aggressiveness"`
	MinSilenceSeconds float64 `json:"min_silence_seconds" yaml:"min_silence_seconds"`
	RefineWindowMS    int     `json:"refine_window_ms" yaml:"refine_window_ms"`
	SplitMaxSeconds   float64 `json:"split_max_seconds" yaml:"split_max_seconds"`
	SplitMaxChars     int     `json:"split_max_chars" yaml:"split_max_chars"`
	MergeMinSeconds   float64 `json:"merge_min_seconds" yaml:"merge_min_seconds"`
}

// DefaultParams returns the compiled-in defaults.
func DefaultParams() Params {
	return Params{
		VADAggressiveness: 1,
		MinSilenceSeconds: 1,
		RefineWindowMS:    200,
		SplitMaxSeconds:   7,
		SplitMaxChars:     200,
		MergeMinSeconds:   1,
	}
}

// Config is the validated pipeline configuration built once per job from
// (API override > environment default > compiled default). The wire format
// stays an ordered name list plus flat key/value params.
type Config struct {
	Components []string `json:"components" yaml:"components"`
	Params     Params   `json:"params" yaml:"params"`
}

// Validate rejects unknown component names and out-of-range parameters
// before any component is instantiated. Nothing is silently clamped.
func (c Config) Validate() error {
	for _, name := range c.Components {
		switch name {
		case ComponentVAD, ComponentRefine, ComponentSplit:
		default:
			return fmt.Errorf("unknown enhancement component %q", name)
		}
	}
	p := c.Params
	if p.VADAggressiveness < 0 || p.VADAggressiveness > 3 {
		return fmt.Errorf("vad_aggressiveness must be 0-3, got %d", p.VADAggressiveness)
	}
	if p.MinSilenceSeconds <= 0 {
		return fmt.Errorf("min_silence_seconds must be positive, got %g", p.MinSilenceSeconds)
	}
	if p.RefineWindowMS <= 0 {
		return fmt.Errorf("refine_window_ms must be positive, got %d", p.RefineWindowMS)
	}
	if p.SplitMaxSeconds <= 0 {
		return fmt.Errorf("split_max_seconds must be positive, got %g", p.SplitMaxSeconds)
	}
	if p.SplitMaxChars <= 0 {
		return fmt.Errorf("split_max_chars must be positive, got %d", p.SplitMaxChars)
	}
	if p.MergeMinSeconds < 0 {
		return fmt.Errorf("merge_min_seconds must not be negative, got %g", p.MergeMinSeconds)
	}
	if p.MergeMinSeconds >= p.SplitMaxSeconds {
		return fmt.Errorf("merge_min_seconds (%g) must be below split_max_seconds (%g)",
			p.MergeMinSeconds, p.SplitMaxSeconds)
	}
	return nil
}

// Build validates the config and instantiates the pipeline.
func (c Config) Build(logger *slog.Logger) (*Pipeline, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	components := make([]Component, 0, len(c.Components))
	for _, name := range c.Components {
		switch name {
		case ComponentVAD:
			components = append(components, NewVoiceActivityFilter(c.Params))
		case ComponentRefine:
			components = append(components, NewTimestampRefiner(c.Params))
		case ComponentSplit:
			components = append(components, NewSegmentSplitter(c.Params))
		}
	}
	return New(components, logger), nil
}

// LoadConfigFile parses a YAML pipeline configuration.
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read pipeline config: %w", err)
	}
	cfg := Config{Params: DefaultParams()}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse pipeline config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Noop returns a pipeline with no components, used when enhancement is
// disabled by the kill-switch.
func Noop(logger *slog.Logger) *Pipeline {
	return New(nil, logger)
}

var _ Component = (*funcComponent)(nil)

// funcComponent adapts a function to the Component interface (tests and
// experiments).
type funcComponent struct {
	name string
	fn   func(ctx context.Context, segments []models.Segment, analysis *Analysis) ([]models.Segment, error)
}

// ComponentFunc wraps fn as a named Component.
func ComponentFunc(name string, fn func(ctx context.Context, segments []models.Segment, analysis *Analysis) ([]models.Segment, error)) Component {
	return &funcComponent{name: name, fn: fn}
}

func (f *funcComponent) Name() string { return f.name }

func (f *funcComponent) Process(ctx context.Context, segments []models.Segment, analysis *Analysis) ([]models.Segment, error) {
	return f.fn(ctx, segments, analysis)
}
