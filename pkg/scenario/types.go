package scenario

import (
	"time"
)

// StepKind names the API call a step performs.
type StepKind string

const (
	KindMemory StepKind = "memory"
	KindCPU    StepKind = "cpu"
	KindDisk   StepKind = "disk"
	KindLogs   StepKind = "logs"
	KindMetric StepKind = "metric"
	KindTrace  StepKind = "trace"
)

// Simulation reports whether the step launches a background task.
func (k StepKind) Simulation() bool {
	return k == KindMemory || k == KindCPU || k == KindDisk
}

// Scenario is a scripted sequence of API calls. Steps run in order.
// Documents are YAML or JSON; durations are strings such as "250ms".
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Seed drives interval jitter. Zero picks one from the clock; the
	// chosen seed is reported.
	Seed int64 `yaml:"seed"`
	// Timeout bounds the whole run. Zero means no bound beyond the caller's context.
	Timeout    time.Duration `yaml:"timeout"`
	Steps      []Step        `yaml:"steps"`
	Invariants []Invariant   `yaml:"invariants"`
}

// Step issues Repeat calls of one kind, spread over Concurrency workers.
type Step struct {
	Name        string        `yaml:"name"`
	Kind        StepKind      `yaml:"kind"`
	Repeat      int           `yaml:"repeat"`      // default 1
	Concurrency int           `yaml:"concurrency"` // default 1
	Delay       time.Duration `yaml:"delay"`
	Interval    time.Duration `yaml:"interval"`
	Jitter      time.Duration `yaml:"jitter"`

	// Wait polls every launched task until it finishes. Cancel cancels
	// them once all calls of the step were made; it takes precedence over Wait.
	Wait   bool `yaml:"wait"`
	Cancel bool `yaml:"cancel"`

	// memory, cpu, disk
	Percentage *float64 `yaml:"percentage"`
	Duration   string   `yaml:"duration"`

	// logs
	Level   string `yaml:"level"`
	Message string `yaml:"message"`
	Count   int    `yaml:"count"`

	// metric
	Metric string  `yaml:"metric"`
	Value  float64 `yaml:"value"`
	Unit   string  `yaml:"unit"`

	// trace
	Services  int      `yaml:"services"`
	ErrorRate *float64 `yaml:"error_rate"`
}

// Invariant is a condition checked against the final counters.
type Invariant struct {
	Metric    string  `yaml:"metric"`    // error_rate, task_failure_rate, requests, errors, tasks
	Condition string  `yaml:"condition"` // >, >=, <, <=, ==
	Value     float64 `yaml:"value"`
	Scope     string  `yaml:"scope"` // "global" or a step name
}

// Report captures the outcome of a run.
type Report struct {
	ScenarioName  string            `json:"scenario_name"`
	Seed          int64             `json:"seed"`
	Elapsed       time.Duration     `json:"elapsed"`
	TotalRequests uint64            `json:"total_requests"`
	TotalErrors   uint64            `json:"total_errors"`
	TotalTasks    uint64            `json:"total_tasks"`
	TotalFailed   uint64            `json:"total_failed"`
	Steps         []*StepStats      `json:"steps"`
	Invariants    []InvariantResult `json:"invariants"`
	Interrupted   bool              `json:"interrupted,omitempty"` // timeout or caller cancellation
	Success       bool              `json:"success"`
}

type StepStats struct {
	Name     string   `json:"name"`
	Kind     StepKind `json:"kind"`
	Requests uint64   `json:"requests"`
	Errors   uint64   `json:"errors"`
	Tasks    uint64   `json:"tasks"`
	Failed   uint64   `json:"failed"` // tasks that ended in state failed
	TaskIDs  []string `json:"task_ids,omitempty"`
}

type InvariantResult struct {
	Metric   string `json:"metric"`
	Scope    string `json:"scope"`
	Expected string `json:"expected"` // e.g. "< 0.05"
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
}
