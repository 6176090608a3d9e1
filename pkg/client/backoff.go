package client

import (
	"math/rand/v2"
	"time"
)

// BackoffStrategy returns the wait before retry number attempt (0-based).
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// FixedBackoff waits the same interval before every retry.
type FixedBackoff time.Duration

func (f FixedBackoff) Next(int) time.Duration { return time.Duration(f) }

// Backoff doubles Initial per attempt until it reaches Ceiling. Spread in
// [0,1] moves each wait by up to that fraction in either direction so many
// clients polling one daemon do not retry in lockstep.
type Backoff struct {
	Initial time.Duration
	Ceiling time.Duration
	Spread  float64

	// rand returns values in [0,1); nil uses math/rand/v2.
	rand func() float64
}

// DefaultBackoff is what WaitReady uses when no strategy is given:
// 100ms doubling up to 5s, ±20 %.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 100 * time.Millisecond, Ceiling: 5 * time.Second, Spread: 0.2}
}

func (b Backoff) Next(attempt int) time.Duration {
	wait := b.Initial
	for i := 0; i < attempt && (b.Ceiling <= 0 || wait < b.Ceiling); i++ {
		wait *= 2
	}
	if b.Ceiling > 0 && wait > b.Ceiling {
		wait = b.Ceiling
	}
	if b.Spread <= 0 || wait <= 0 {
		return wait
	}

	draw := rand.Float64
	if b.rand != nil {
		draw = b.rand
	}
	offset := time.Duration(float64(wait) * b.Spread * (2*draw() - 1))
	return max(wait+offset, 0)
}
