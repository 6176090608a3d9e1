package client

import (
	"fmt"
	"time"
)

// SimulationRequest starts a memory, CPU or disk simulation.
type SimulationRequest struct {
	// Percentage is the target load, usually 0-100.
	Percentage float64 `json:"percentage"`
	// Duration is "MM:SS". Empty uses the server default ("00:30").
	Duration string `json:"duration,omitempty"`
}

type SimulationResponse struct {
	Message  string `json:"message"`
	Status   string `json:"status"`
	Duration int    `json:"duration"`
	TaskID   string `json:"taskId"`
}

// LogRequest generates synthetic log lines. Zero fields use server defaults.
type LogRequest struct {
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
	Count   int    `json:"count,omitempty"`
}

type LogResponse struct {
	Message string `json:"message"`
	Level   string `json:"level"`
	Count   int    `json:"count"`
}

type MetricRequest struct {
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

type MetricResponse struct {
	Message string  `json:"message"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
}

type TraceRequest struct {
	Services int `json:"services,omitempty"`
	// ErrorRate is the per-span failure probability. Nil uses the server default (0.1).
	ErrorRate *float64 `json:"errorRate,omitempty"`
}

type Span struct {
	TraceID  string  `json:"traceId"`
	SpanID   string  `json:"spanId"`
	ParentID *string `json:"parentId"`
	Service  string  `json:"service"`
	Duration float64 `json:"duration"`
	Status   string  `json:"status"`
}

type TraceResponse struct {
	Message string `json:"message"`
	TraceID string `json:"traceId"`
	Spans   []Span `json:"spans"`
}

// Task mirrors a registry task on the server.
type Task struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	Percentage      float64    `json:"percentage"`
	DurationSeconds int        `json:"durationSeconds"`
	Status          string     `json:"status"`
	State           string     `json:"state"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// Running reports whether the task has not finished yet.
func (t Task) Running() bool {
	return t.State == "running"
}

type TaskList struct {
	Tasks   []Task `json:"tasks"`
	Running int    `json:"running"`
}

type Signal struct {
	Kind   string         `json:"kind"`
	At     time.Time      `json:"at"`
	Fields map[string]any `json:"fields"`
}

// Status represents the health check response.
type Status struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Running int    `json:"running"`
}

// HistoryOptions filters the task-run journal export.
type HistoryOptions struct {
	Format string // "csv" or "json"
	Report string // "runs" or "summary"
	Kind   string
	State  string
	From   time.Time
	To     time.Time
	Limit  int
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("loadsim api: status %d: %s", e.StatusCode, e.Message)
}
