package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations and returns scripted results per command.
type fakeRunner struct {
	calls []string
	fail  map[string]error
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	r.calls = append(r.calls, name)
	if err := r.fail[name]; err != nil {
		return commandResult{ExitCode: 1, Stderr: "scripted failure"}, err
	}
	return commandResult{}, nil
}

const sampleWhisperJSON = `{
	"transcription": [
		{"offsets": {"from": 0, "to": 2400}, "text": " Hello there."},
		{"offsets": {"from": 2400, "to": 5100}, "text": " General Kenobi."},
		{"offsets": {"from": 5100, "to": 5100}, "text": "zero length"},
		{"offsets": {"from": 6000, "to": 7000}, "text": "   "}
	]
}`

func newTestService(t *testing.T, runner commandRunner, jsonOut string) *WhisperCPP {
	t.Helper()

	svc := NewWhisperCPP("whisper-fast", "/models/ggml-base.bin")
	svc.runner = runner
	svc.mkdirTemp = func(dir, pattern string) (string, error) { return t.TempDir(), nil }
	svc.removeAll = func(string) error { return nil }
	svc.readFile = func(string) ([]byte, error) {
		if jsonOut == "" {
			return nil, os.ErrNotExist
		}
		return []byte(jsonOut), nil
	}
	return svc
}

func testAudioPath(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.mp3")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	return p
}

func TestWhisperCPP_Transcribe(t *testing.T) {
	runner := &fakeRunner{}
	svc := newTestService(t, runner, sampleWhisperJSON)

	segments, err := svc.Transcribe(context.Background(), testAudioPath(t), "en")
	require.NoError(t, err)

	// Zero-length and whitespace-only entries are dropped.
	require.Len(t, segments, 2)
	assert.Equal(t, "Hello there.", segments[0].Text)
	assert.InDelta(t, 0.0, segments[0].Start, 1e-9)
	assert.InDelta(t, 2.4, segments[0].End, 1e-9)
	assert.Equal(t, "General Kenobi.", segments[1].Text)

	// ffmpeg preprocess runs before whisper.cpp.
	require.Equal(t, []string{"ffmpeg", "whisper.cpp"}, runner.calls)
}

func TestWhisperCPP_MissingAudio(t *testing.T) {
	svc := newTestService(t, &fakeRunner{}, sampleWhisperJSON)

	_, err := svc.Transcribe(context.Background(), filepath.Join(t.TempDir(), "absent.mp3"), "en")
	require.Error(t, err)
	assert.Equal(t, "audio file is not readable", SanitizedMessage(err))
}

func TestWhisperCPP_FFmpegFailureSanitized(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"ffmpeg": errors.New("exit status 1: /private/path/in.mp3 corrupt")}}
	svc := newTestService(t, runner, sampleWhisperJSON)

	_, err := svc.Transcribe(context.Background(), testAudioPath(t), "en")
	require.Error(t, err)

	msg := SanitizedMessage(err)
	assert.Equal(t, "audio conversion failed", msg)
	assert.NotContains(t, msg, "/private/path")
}

func TestWhisperCPP_ModelFailureSanitized(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"whisper.cpp": errors.New("CUDA out of memory at /opt/models")}}
	svc := newTestService(t, runner, sampleWhisperJSON)

	_, err := svc.Transcribe(context.Background(), testAudioPath(t), "en")
	require.Error(t, err)

	msg := SanitizedMessage(err)
	assert.Equal(t, "transcription model failed", msg)
	assert.False(t, strings.Contains(msg, "CUDA"), "raw diagnostics leaked: %q", msg)
}

func TestWhisperCPP_NoOutput(t *testing.T) {
	svc := newTestService(t, &fakeRunner{}, "")

	_, err := svc.Transcribe(context.Background(), testAudioPath(t), "en")
	require.Error(t, err)
	assert.Equal(t, "transcription produced no output", SanitizedMessage(err))
}

func TestSanitizedMessage_UnknownError(t *testing.T) {
	assert.Equal(t, "transcription failed", SanitizedMessage(errors.New("raw panic text")))
}

func TestBuildWhisperArgs_Language(t *testing.T) {
	args := buildWhisperArgs("/m/model.bin", "/tmp/a.wav", "/tmp/out", "zh")
	assert.Contains(t, args, "-l")
	assert.Contains(t, args, "zh")

	args = buildWhisperArgs("/m/model.bin", "/tmp/a.wav", "/tmp/out", "auto")
	assert.NotContains(t, args, "-l")
}

func TestParseWhisperJSON_Sorted(t *testing.T) {
	raw := `{"transcription": [
		{"offsets": {"from": 5000, "to": 6000}, "text": "second"},
		{"offsets": {"from": 0, "to": 1000}, "text": "first"}
	]}`
	segments, err := parseWhisperJSON([]byte(raw))
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "first", segments[0].Text)
}

func TestParseWhisperJSON_Garbage(t *testing.T) {
	_, err := parseWhisperJSON([]byte("not json"))
	assert.Error(t, err)
}
