// Sentinel errors for job-state operations. Use errors.Is() in callers.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

var (
	// ErrNotFound indicates the requested job does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrJobExists indicates a Create collided with an existing job ID.
	ErrJobExists = errors.New("job already exists")

	// ErrJobTerminal indicates a write against a completed or failed job.
	ErrJobTerminal = errors.New("job is terminal")

	// ErrInvalidTransition indicates a status write that violates the
	// pending -> processing -> {completed|failed} machine.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrProgressRegression indicates a progress write below the job's
	// current progress.
	ErrProgressRegression = errors.New("progress must not decrease")

	// ErrNoResult indicates the job has no stored result.
	ErrNoResult = errors.New("no result for job")
)

// wrapQueryError inspects a SurrealDB error and wraps it with the
// appropriate sentinel if it matches a known query error pattern.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "already exists") {
			return fmt.Errorf("%w: %s", ErrJobExists, msg)
		}
	}

	return err
}
