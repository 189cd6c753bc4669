package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client talks to a worker over loopback HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for the worker at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// HTTPError is a non-2xx worker response.
type HTTPError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("worker returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("worker returned HTTP %d: %s", e.StatusCode, e.Detail)
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// SubmitDownload calls POST /api/download.
func (c *Client) SubmitDownload(ctx context.Context, req DownloadRequest) (DownloadResponse, error) {
	var out DownloadResponse
	err := c.do(ctx, http.MethodPost, "/api/download", req, &out)
	return out, err
}

// GetDownload calls GET /api/download/{taskID}.
func (c *Client) GetDownload(ctx context.Context, taskID string) (Task, error) {
	var out Task
	err := c.do(ctx, http.MethodGet, "/api/download/"+url.PathEscape(taskID), nil, &out)
	return out, err
}

// ListDownloads calls GET /api/downloads.
func (c *Client) ListDownloads(ctx context.Context) ([]Task, error) {
	var out []Task
	err := c.do(ctx, http.MethodGet, "/api/downloads", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &HTTPError{StatusCode: resp.StatusCode, Detail: e.Detail}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
