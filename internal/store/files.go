package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lhartmann/scribeq/internal/models"
)

// WriteResultFile writes the final segment list to
// {jobRoot}/{jobID}/result.json. The ID is validated before any path is
// built from it, so a crafted ID can never escape the job root.
func WriteResultFile(jobRoot, jobID string, segments []models.Segment) (string, error) {
	if err := models.ValidateJobID(jobID); err != nil {
		return "", err
	}

	dir := filepath.Join(jobRoot, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}

	raw, err := json.MarshalIndent(models.JobResult{Segments: segments}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}

	path := filepath.Join(dir, "result.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("finalize result: %w", err)
	}
	return path, nil
}

// ReadResultFile loads a result previously written by WriteResultFile.
func ReadResultFile(jobRoot, jobID string) (models.JobResult, error) {
	if err := models.ValidateJobID(jobID); err != nil {
		return models.JobResult{}, err
	}

	raw, err := os.ReadFile(filepath.Join(jobRoot, jobID, "result.json"))
	if os.IsNotExist(err) {
		return models.JobResult{}, fmt.Errorf("%w: %s", ErrNoResult, jobID)
	}
	if err != nil {
		return models.JobResult{}, fmt.Errorf("read result: %w", err)
	}

	var result models.JobResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return models.JobResult{}, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}
