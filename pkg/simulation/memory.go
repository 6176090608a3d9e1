package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

// chunkSize is the size of each individual allocation.
const chunkSize = 1024

// TotalMemoryFunc reports the total physical memory of the host in bytes.
type TotalMemoryFunc func(ctx context.Context) (uint64, error)

// SystemMemory reads the host total through gopsutil.
func SystemMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read virtual memory: %w", err)
	}
	return vm.Total, nil
}

// SystemAvailable reads the memory the host can hand out without swapping.
func SystemAvailable(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read virtual memory: %w", err)
	}
	return vm.Available, nil
}

// ErrInsufficientMemory is returned when a run would need more memory than
// the host currently has available.
var ErrInsufficientMemory = errors.New("insufficient available memory")

// Memory holds percentage/100 of total memory for the requested duration.
type Memory struct {
	totalMemory TotalMemoryFunc
	available   TotalMemoryFunc
	logger      *slog.Logger
}

// NewMemory creates a memory workload. A nil total falls back to SystemMemory.
func NewMemory(total TotalMemoryFunc, logger *slog.Logger) *Memory {
	if total == nil {
		total = SystemMemory
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{totalMemory: total, available: SystemAvailable, logger: logger}
}

func (m *Memory) Kind() Kind { return KindMemory }

// TargetBytes computes how much memory a run at percentage would hold.
func (m *Memory) TargetBytes(ctx context.Context, percentage float64) (int64, error) {
	total, err := m.totalMemory(ctx)
	if err != nil {
		return 0, err
	}
	return int64(float64(total) * effectivePercentage(percentage) / 100), nil
}

func (m *Memory) Run(ctx context.Context, p Params) error {
	target, err := m.TargetBytes(ctx, p.Percentage)
	if err != nil {
		return err
	}

	// never allocate past what the host has free
	avail, err := m.available(ctx)
	switch {
	case err != nil:
		m.logger.Warn("memory_available_unknown", "task_id", p.TaskID, "error", err)
	case uint64(target) > avail:
		return fmt.Errorf("%w: need %d bytes, %d available", ErrInsufficientMemory, target, avail)
	}

	n := int(target / chunkSize)
	chunks := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if i%4096 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		b := make([]byte, chunkSize)
		// touch the chunk so the pages are actually committed
		b[0] = 1
		chunks = append(chunks, b)
	}

	m.logger.Debug("memory_held", "task_id", p.TaskID, "bytes", int64(n)*chunkSize, "chunks", n)

	err = sleepCtx(ctx, p.Duration)
	runtime.KeepAlive(chunks)

	start := time.Now()
	runtime.GC()
	m.logger.Debug("memory_released", "task_id", p.TaskID, "gc_ms", time.Since(start).Milliseconds())

	return err
}
