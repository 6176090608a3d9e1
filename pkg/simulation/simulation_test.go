package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		pct  float64
		want Status
	}{
		{-10, StatusGood},
		{0, StatusGood},
		{49.99, StatusGood},
		{50, StatusWarning},
		{79.9, StatusWarning},
		{80, StatusCritical},
		{100, StatusCritical},
		{250, StatusCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.pct), "percentage %v", tt.pct)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"02:05", 125, false},
		{"00:00", 0, false},
		{"00:30", 30, false},
		{"1:5", 65, false},
		{" 01 : 10 ", 70, false},
		{"90:00", 5400, false},
		{"0130", 0, true},
		{"", 0, true},
		{"01:02:03", 0, true},
		{"aa:10", 0, true},
		{"01:1.5", 0, true},
		{"-1:10", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidDuration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectivePercentage(t *testing.T) {
	assert.Equal(t, 0.0, effectivePercentage(-5))
	assert.Equal(t, 42.0, effectivePercentage(42))
	assert.Equal(t, 100.0, effectivePercentage(150))
}

func TestKindLabel(t *testing.T) {
	assert.Equal(t, "Memory", KindMemory.Label())
	assert.Equal(t, "CPU", KindCPU.Label())
	assert.Equal(t, "Disk", KindDisk.Label())
}

func fixedTotal(n uint64) TotalMemoryFunc {
	return func(context.Context) (uint64, error) { return n, nil }
}

func TestMemory_TargetBytes(t *testing.T) {
	m := NewMemory(fixedTotal(1<<20), nil)
	ctx := context.Background()

	got, err := m.TargetBytes(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(512*1024), got)

	got, err = m.TargetBytes(ctx, 400)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), got, "percentage above 100 is clamped")

	got, err = m.TargetBytes(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestMemory_RunHoldsForDuration(t *testing.T) {
	m := NewMemory(fixedTotal(1<<20), nil)

	start := time.Now()
	err := m.Run(context.Background(), Params{TaskID: "t1", Percentage: 25, Duration: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestMemory_RunCanceled(t *testing.T) {
	m := NewMemory(fixedTotal(1<<20), nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	err := m.Run(ctx, Params{Percentage: 10, Duration: time.Minute})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMemory_TotalError(t *testing.T) {
	boom := errors.New("no meminfo")
	m := NewMemory(func(context.Context) (uint64, error) { return 0, boom }, nil)

	err := m.Run(context.Background(), Params{Percentage: 50, Duration: time.Millisecond})
	assert.ErrorIs(t, err, boom)
}

func TestMemory_TargetBeyondAvailable(t *testing.T) {
	m := NewMemory(fixedTotal(1<<30), nil)
	m.available = fixedTotal(64 << 20)

	start := time.Now()
	err := m.Run(context.Background(), Params{TaskID: "t1", Percentage: 100, Duration: time.Minute})
	assert.ErrorIs(t, err, ErrInsufficientMemory)
	assert.Contains(t, err.Error(), "need 1073741824 bytes, 67108864 available")
	assert.Less(t, time.Since(start), time.Second, "must fail before allocating or holding")
}

func TestMemory_AvailableUnknown(t *testing.T) {
	m := NewMemory(fixedTotal(1<<20), nil)
	m.available = func(context.Context) (uint64, error) { return 0, errors.New("no meminfo") }

	err := m.Run(context.Background(), Params{TaskID: "t1", Percentage: 50, Duration: time.Millisecond})
	assert.NoError(t, err)
}

func TestIsScratchKey(t *testing.T) {
	assert.True(t, IsScratchKey(SharedScratchKey))
	assert.True(t, IsScratchKey("0b7c5a3e-4f2d-4e8a-9c1b-2d3e4f5a6b7c.bin"))
	assert.False(t, IsScratchKey("archive.bin"))
	assert.False(t, IsScratchKey("notes.txt"))
	assert.False(t, IsScratchKey("0b7c5a3e-4f2d-4e8a-9c1b-2d3e4f5a6b7c"))
}

func TestCPU_RunRespectsDuration(t *testing.T) {
	c := NewCPU(nil)
	c.idle = 5 * time.Millisecond

	start := time.Now()
	err := c.Run(context.Background(), Params{Percentage: 50, Duration: 60 * time.Millisecond})
	require.NoError(t, err)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestCPU_DutyCycleFollowsCoinFlip(t *testing.T) {
	c := NewCPU(nil)
	c.idle = time.Millisecond

	// always busy at 100%
	draws := 0
	c.rand = func() float64 { draws++; return 0.999 }
	require.NoError(t, c.Run(context.Background(), Params{Percentage: 100, Duration: 20 * time.Millisecond}))
	assert.Greater(t, draws, 0)
	assert.NotZero(t, burnSink.Load())

	// never busy at 0%
	c.rand = func() float64 { return 0 }
	start := time.Now()
	require.NoError(t, c.Run(context.Background(), Params{Percentage: 0, Duration: 20 * time.Millisecond}))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestCPU_RunCanceled(t *testing.T) {
	c := NewCPU(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Run(ctx, Params{Percentage: 50, Duration: time.Minute})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBurn(t *testing.T) {
	burn()
	// sum of i*i for i in [0, 10000)
	assert.Equal(t, uint64(333283335000), burnSink.Load())
}
