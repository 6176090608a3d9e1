package simulation

import (
	"context"
	"time"
)

// Kind names a resource workload.
type Kind string

const (
	KindMemory Kind = "memory"
	KindCPU    Kind = "cpu"
	KindDisk   Kind = "disk"
)

// Label returns the human readable name used in acknowledgement messages.
func (k Kind) Label() string {
	switch k {
	case KindMemory:
		return "Memory"
	case KindCPU:
		return "CPU"
	case KindDisk:
		return "Disk"
	default:
		return string(k)
	}
}

// Params describes one workload run.
type Params struct {
	// TaskID identifies the run; workloads that keep state on disk derive their keys from it.
	TaskID     string
	Percentage float64
	Duration   time.Duration
}

// Workload performs a bounded simulated load. Run blocks until the duration
// elapses or ctx is canceled, in which case it returns ctx.Err().
type Workload interface {
	Kind() Kind
	Run(ctx context.Context, p Params) error
}

const (
	// idleInterval is the sleep taken on an "idle" coin flip.
	idleInterval = 100 * time.Millisecond

	// busyIterations bounds the square-number loop of one busy step.
	busyIterations = 10000
)

// effectivePercentage clamps the requested percentage into [0, 100] for the
// purpose of sizing work. The requested value itself is echoed unchanged.
func effectivePercentage(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
