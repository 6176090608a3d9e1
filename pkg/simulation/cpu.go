package simulation

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"
)

// burnSink keeps the busy loop result observable so it is not optimized away.
var burnSink atomic.Uint64

// CPU alternates between a bounded busy loop and a short sleep. Each
// iteration is busy with probability percentage/100, which approximates the
// requested duty cycle over time.
type CPU struct {
	rand   func() float64
	idle   time.Duration
	logger *slog.Logger
}

// NewCPU creates a CPU workload.
func NewCPU(logger *slog.Logger) *CPU {
	if logger == nil {
		logger = slog.Default()
	}
	return &CPU{rand: rand.Float64, idle: idleInterval, logger: logger}
}

func (c *CPU) Kind() Kind { return KindCPU }

func (c *CPU) Run(ctx context.Context, p Params) error {
	pct := effectivePercentage(p.Percentage)
	deadline := time.Now().Add(p.Duration)

	var busy, idle int
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.rand()*100 < pct {
			burn()
			busy++
			continue
		}
		idle++
		if err := sleepCtx(ctx, c.idle); err != nil {
			return err
		}
	}

	c.logger.Debug("cpu_simulation_finished", "task_id", p.TaskID, "busy_steps", busy, "idle_steps", idle)
	return nil
}

func burn() {
	var sum uint64
	for i := uint64(0); i < busyIterations; i++ {
		sum += i * i
	}
	burnSink.Store(sum)
}
