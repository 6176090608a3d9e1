package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rmax-ai/loadsim/pkg/signals"
	"github.com/rmax-ai/loadsim/pkg/tasks"
)

// Number is a float that also accepts a numeric JSON string ("75").
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("could not convert string to float: %q", s)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("could not convert %s to float", b)
	}
	*n = Number(f)
	return nil
}

// Integer is an int that also accepts a numeric JSON string ("3").
// Fractional JSON numbers are truncated toward zero.
type Integer int

func (n *Integer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		i, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid literal for int: %q", s)
		}
		*n = Integer(i)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("could not convert %s to int", b)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return fmt.Errorf("integer out of range: %s", b)
	}
	*n = Integer(math.Trunc(f))
	return nil
}

// SimulationRequest is the body of POST /api/simulate/{memory,cpu,disk}.
type SimulationRequest struct {
	Percentage *Number `json:"percentage"`
	Duration   *string `json:"duration"`
}

type SimulationResponse struct {
	Message  string `json:"message"`
	Status   string `json:"status"`
	Duration int    `json:"duration"`
	TaskID   string `json:"taskId"`
}

// LogRequest is the body of POST /api/logs.
type LogRequest struct {
	Level   *string  `json:"level"`
	Message *string  `json:"message"`
	Count   *Integer `json:"count"`
}

type LogResponse = signals.LogResult

// MetricRequest is the body of POST /api/metrics.
type MetricRequest struct {
	Name  *string `json:"name"`
	Value *Number `json:"value"`
	Unit  *string `json:"unit"`
}

type MetricResponse = signals.MetricResult

// TraceRequest is the body of POST /api/traces.
type TraceRequest struct {
	Services  *Integer `json:"services"`
	ErrorRate *Number  `json:"errorRate"`
}

type TraceResponse = signals.TraceResult

type TaskListResponse struct {
	Tasks   []tasks.Task `json:"tasks"`
	Running int          `json:"running"`
}

type SignalListResponse struct {
	Signals []signals.Signal `json:"signals"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Running int    `json:"running"`
}

// Defaults applied when a field is missing or null.
const (
	DefaultPercentage = 50.0
	DefaultDuration   = "00:30"
	DefaultLogLevel   = "INFO"
	DefaultLogMessage = "Test log message"
	DefaultLogCount   = 1
	DefaultMetricName = "custom_metric"
	DefaultMetricUnit = "Count"
	DefaultServices   = 3
	DefaultErrorRate  = 0.1
)

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func numberOr(p *Number, def float64) float64 {
	if p == nil {
		return def
	}
	return float64(*p)
}

func integerOr(p *Integer, def int) int {
	if p == nil {
		return def
	}
	return int(*p)
}
