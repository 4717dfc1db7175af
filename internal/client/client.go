// Package client provides an HTTP client for the scribeq daemon's job API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lhartmann/scribeq/internal/dispatch"
	"github.com/lhartmann/scribeq/internal/models"
	"github.com/lhartmann/scribeq/internal/server"
)

// Client talks to a running scribeq daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. If baseURL is empty, uses the SCRIBEQ_SERVER_URL
// env var or defaults to localhost:8080. Timeout can be configured via
// SCRIBEQ_CLIENT_TIMEOUT.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("SCRIBEQ_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	timeout := time.Minute
	if t := os.Getenv("SCRIBEQ_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Job is one job as returned by the API.
type Job struct {
	JobID string `json:"job_id"`
	models.JobState
}

// Submit sends a transcription request and returns the dispatch receipt.
func (c *Client) Submit(ctx context.Context, req dispatch.Request) (dispatch.Receipt, error) {
	var receipt dispatch.Receipt
	err := c.do(ctx, http.MethodPost, "/api/jobs", req, &receipt)
	return receipt, err
}

// GetJob fetches one job's status.
func (c *Client) GetJob(ctx context.Context, jobID string) (Job, error) {
	var job Job
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+jobID, nil, &job)
	return job, err
}

// GetResult fetches a completed job's segments.
func (c *Client) GetResult(ctx context.Context, jobID string) (models.JobResult, error) {
	var result models.JobResult
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+jobID+"/result", nil, &result)
	return result, err
}

// ListJobs fetches all jobs.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var jobs []Job
	err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &jobs)
	return jobs, err
}

// WatchJob streams progress events until the job reaches a terminal
// state, the stream closes, or the context is cancelled. onEvent is
// called for every frame.
func (c *Client) WatchJob(ctx context.Context, jobID string, onEvent func(server.ProgressEvent)) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/jobs/" + jobID + "/events"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial events: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var event server.ProgressEvent
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}
		onEvent(event)
		if event.Status.Terminal() {
			return nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error (%s): %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("server error: %s", resp.Status)
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
