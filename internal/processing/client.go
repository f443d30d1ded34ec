package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pavelanni/papergen/internal/model"
)

// ErrNotConfigured is returned when no processing URL is set.
var ErrNotConfigured = errors.New("processing service not configured")

// SubmitRequest describes the documents of one course handed to the processor.
type SubmitRequest struct {
	CourseCode   string `json:"course_code"`
	BankFile     string `json:"bank_file"`
	SyllabusFile string `json:"syllabus_file"`
}

// StatusResult is the processor's view of a job. Pool is set only once the
// job has completed.
type StatusResult struct {
	Status  model.JobStatus
	Message string
	Pool    *model.CandidatePool
}

// Client talks to the external document-processing webhook.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a processing client. An empty baseURL yields a client whose
// calls fail with ErrNotConfigured.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a processing URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Submit starts a processing job and returns the processor's job id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}
	var resp struct {
		JobID string `json:"job_id"`
		ID    string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/jobs", bytes.NewReader(body), &resp); err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	id := resp.JobID
	if id == "" {
		id = resp.ID
	}
	if id == "" {
		return "", fmt.Errorf("submit job: response carries no job id")
	}
	slog.Info("submitted processing job", "course", req.CourseCode, "external_id", id)
	return id, nil
}

// Status fetches the current state of a job once.
func (c *Client) Status(ctx context.Context, externalID string) (*StatusResult, error) {
	var resp struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Result  json.RawMessage `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(externalID), nil, &resp); err != nil {
		return nil, fmt.Errorf("job status: %w", err)
	}

	res := &StatusResult{Status: ParseStatus(resp.Status), Message: resp.Message}
	if res.Message == "" {
		res.Message = resp.Error
	}
	if res.Status == model.JobCompleted {
		if len(resp.Result) == 0 || string(resp.Result) == "null" {
			return nil, fmt.Errorf("job status: completed job %s has no result", externalID)
		}
		pool, err := DecodePool(bytes.NewReader(resp.Result))
		if err != nil {
			return nil, fmt.Errorf("job status: %w", err)
		}
		res.Pool = &pool
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ParseStatus maps the processor's status vocabulary onto JobStatus.
// Unknown values count as still processing.
func ParseStatus(s string) model.JobStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending", "queued", "submitted":
		return model.JobPending
	case "completed", "complete", "done", "success", "succeeded":
		return model.JobCompleted
	case "failed", "error", "cancelled", "canceled":
		return model.JobFailed
	default:
		return model.JobProcessing
	}
}
