package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/lhartmann/scribeq/internal/models"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// WhisperCPP transcribes through the whisper.cpp CLI: ffmpeg normalizes
// the source to 16 kHz mono PCM, whisper.cpp emits JSON segments.
type WhisperCPP struct {
	family      string
	modelPath   string
	ffmpegPath  string
	whisperPath string
	runner      commandRunner
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	readFile    func(name string) ([]byte, error)
}

// NewWhisperCPP constructs the production service for one model family.
func NewWhisperCPP(family, modelPath string) *WhisperCPP {
	return &WhisperCPP{
		family:      family,
		modelPath:   modelPath,
		ffmpegPath:  "ffmpeg",
		whisperPath: "whisper.cpp",
		runner:      &execRunner{},
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		readFile:    os.ReadFile,
	}
}

// ModelInfo reports the bound model family and runtime.
func (w *WhisperCPP) ModelInfo() ModelInfo {
	return ModelInfo{
		Family:    w.family,
		ModelPath: w.modelPath,
		Runtime:   "whisper.cpp",
	}
}

// Transcribe runs preprocessing and transcription, returning raw segments.
func (w *WhisperCPP) Transcribe(ctx context.Context, audioPath, language string) ([]models.Segment, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, &Failure{
			Stage:       "preprocessing",
			UserMessage: "audio file is not readable",
			Err:         err,
		}
	}

	tempDir, err := w.mkdirTemp("", "scribeq-*")
	if err != nil {
		return nil, &Failure{
			Stage:       "preprocessing",
			UserMessage: "could not prepare workspace",
			Err:         err,
		}
	}
	defer func() { _ = w.removeAll(tempDir) }()

	wavPath := filepath.Join(tempDir, "preprocessed-16k-mono.wav")
	if _, err := w.runner.Run(ctx, w.ffmpegPath, buildFFmpegArgs(audioPath, wavPath)...); err != nil {
		return nil, &Failure{
			Stage:       "preprocessing",
			UserMessage: "audio conversion failed",
			Err:         err,
		}
	}

	outBase := filepath.Join(tempDir, "transcript")
	args := buildWhisperArgs(w.modelPath, wavPath, outBase, language)
	if _, err := w.runner.Run(ctx, w.whisperPath, args...); err != nil {
		return nil, &Failure{
			Stage:       "transcribing",
			UserMessage: "transcription model failed",
			Err:         err,
		}
	}

	raw, err := w.readFile(outBase + ".json")
	if err != nil {
		return nil, &Failure{
			Stage:       "transcribing",
			UserMessage: "transcription produced no output",
			Err:         err,
		}
	}

	segments, err := parseWhisperJSON(raw)
	if err != nil {
		return nil, &Failure{
			Stage:       "transcribing",
			UserMessage: "transcription output was unreadable",
			Err:         err,
		}
	}
	return segments, nil
}

// buildFFmpegArgs builds preprocessing CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds whisper.cpp args for JSON segment export.
func buildWhisperArgs(modelPath, audioPath, outBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
	}
	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}
	return args
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// whisperOutput mirrors the whisper.cpp -oj JSON layout.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"` // milliseconds
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseWhisperJSON converts whisper.cpp JSON output into segments,
// dropping empty and zero-length entries.
func parseWhisperJSON(raw []byte) ([]models.Segment, error) {
	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]models.Segment, 0, len(out.Transcription))
	for _, entry := range out.Transcription {
		text := strings.TrimSpace(entry.Text)
		if text == "" || entry.Offsets.To <= entry.Offsets.From {
			continue
		}
		segments = append(segments, models.Segment{
			Start: float64(entry.Offsets.From) / 1000.0,
			End:   float64(entry.Offsets.To) / 1000.0,
			Text:  text,
		})
	}

	sorted := models.SortSegments(segments)
	return sorted, nil
}
