// Package transcribe defines the TranscriptionService contract and its
// whisper.cpp-backed implementation. Implementations with incompatible
// runtimes never share a process: each worker pool binds exactly one
// service and runs it out-of-process.
package transcribe

import (
	"context"
	"errors"

	"github.com/lhartmann/scribeq/internal/models"
)

// ModelInfo describes a transcription model implementation.
type ModelInfo struct {
	Family    string `json:"family"`
	ModelPath string `json:"model_path,omitempty"`
	Runtime   string `json:"runtime"`
}

// Service is the contract every model execution environment satisfies.
// Transcribe is a long-running blocking call; cancellation is delivered
// through the context.
type Service interface {
	Transcribe(ctx context.Context, audioPath, language string) ([]models.Segment, error)
	ModelInfo() ModelInfo
}

// Failure is a transcription error with separated operator and user
// views. Err carries full diagnostics for logs; UserMessage is the short,
// sanitized text that ends up in the job's failed state.
type Failure struct {
	Stage       string
	UserMessage string
	Err         error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Stage + ": " + f.UserMessage
	}
	return f.Stage + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// SanitizedMessage extracts the user-facing message from a transcription
// error. Internal paths and process output never reach job state.
func SanitizedMessage(err error) string {
	var f *Failure
	if errors.As(err, &f) && f.UserMessage != "" {
		return f.UserMessage
	}
	return "transcription failed"
}
