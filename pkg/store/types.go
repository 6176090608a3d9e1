package store

import "time"

// TaskRun is one journaled simulation task.
type TaskRun struct {
	TaskID          string     `json:"taskId"`
	Kind            string     `json:"kind"`
	Percentage      float64    `json:"percentage"`
	DurationSeconds int        `json:"durationSeconds"`
	Status          string     `json:"status"`
	State           string     `json:"state"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// RunFilter narrows ListRuns. Zero values mean no constraint.
type RunFilter struct {
	Kind  string
	State string
	From  time.Time
	To    time.Time
	Limit int
}
