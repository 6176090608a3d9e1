package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultEndpoint = "http://127.0.0.1:5000"

// Client is the loadsim SDK client.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a new loadsim client.
// endpoint defaults to DefaultEndpoint if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		// traces block for a fraction of the summed span durations
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) SimulateMemory(ctx context.Context, req SimulationRequest) (*SimulationResponse, error) {
	return c.simulate(ctx, "memory", req)
}

func (c *Client) SimulateCPU(ctx context.Context, req SimulationRequest) (*SimulationResponse, error) {
	return c.simulate(ctx, "cpu", req)
}

func (c *Client) SimulateDisk(ctx context.Context, req SimulationRequest) (*SimulationResponse, error) {
	return c.simulate(ctx, "disk", req)
}

// Simulate starts a simulation of the given kind (memory, cpu or disk).
func (c *Client) Simulate(ctx context.Context, kind string, req SimulationRequest) (*SimulationResponse, error) {
	switch kind {
	case "memory", "cpu", "disk":
		return c.simulate(ctx, kind, req)
	default:
		return nil, fmt.Errorf("unknown simulation kind %q", kind)
	}
}

func (c *Client) simulate(ctx context.Context, kind string, req SimulationRequest) (*SimulationResponse, error) {
	var out SimulationResponse
	if err := c.do(ctx, http.MethodPost, "/api/simulate/"+kind, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerateLogs(ctx context.Context, req LogRequest) (*LogResponse, error) {
	var out LogResponse
	if err := c.do(ctx, http.MethodPost, "/api/logs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EmitMetric(ctx context.Context, req MetricRequest) (*MetricResponse, error) {
	var out MetricResponse
	if err := c.do(ctx, http.MethodPost, "/api/metrics", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateTrace blocks while the server simulates service processing time.
func (c *Client) GenerateTrace(ctx context.Context, req TraceRequest) (*TraceResponse, error) {
	var out TraceResponse
	if err := c.do(ctx, http.MethodPost, "/api/traces", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTasks(ctx context.Context) (*TaskList, error) {
	var out TaskList
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var out Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelTask cancels a running task and returns its state after the server
// waited briefly for it to stop.
func (c *Client) CancelTask(ctx context.Context, id string) (*Task, error) {
	var out Task
	if err := c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Signals returns the most recent signals recorded by the server's sink.
func (c *Client) Signals(ctx context.Context, limit int) ([]Signal, error) {
	path := "/api/signals"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Signals []Signal `json:"signals"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Signals, nil
}

// History downloads the task-run journal export as raw CSV or JSON.
func (c *Client) History(ctx context.Context, opts HistoryOptions) ([]byte, error) {
	q := url.Values{}
	if opts.Format != "" {
		q.Set("format", opts.Format)
	}
	if opts.Report != "" {
		q.Set("report", opts.Report)
	}
	if opts.Kind != "" {
		q.Set("kind", opts.Kind)
	}
	if opts.State != "" {
		q.Set("state", opts.State)
	}
	if !opts.From.IsZero() {
		q.Set("from", opts.From.Format(time.RFC3339))
	}
	if !opts.To.IsZero() {
		q.Set("to", opts.To.Format(time.RFC3339))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	path := "/api/tasks/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/health", nil, &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// WaitReady pings the daemon until it answers, backing off between attempts.
func (c *Client) WaitReady(ctx context.Context, b BackoffStrategy) (Status, error) {
	if b == nil {
		b = DefaultBackoff()
	}
	for attempt := 0; ; attempt++ {
		status, err := c.Ping(ctx)
		if err == nil {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return Status{}, fmt.Errorf("daemon not ready after %d attempts: %w", attempt+1, errors.Join(ctx.Err(), err))
		case <-time.After(b.Next(attempt)):
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// send performs the request and converts non-2xx responses to *APIError.
// The caller closes the body on success.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
