// Package backoff provides delay strategies for idle polling. Strategies
// are stateless and safe for concurrent use; callers track how many polls
// in a row came back empty.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes how long to sleep after n consecutive empty polls
// (1-indexed).
type Strategy interface {
	Delay(idle int) time.Duration
}

// Constant always sleeps the same interval. This is the default: it keeps
// dequeue latency flat at the cost of steady engine traffic.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant idle delay.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Exponential doubles the delay for every consecutive empty poll, capped
// at Max, with a small jitter so a fleet of workers does not poll in
// lockstep.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential idle delay.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

func (e *Exponential) Delay(idle int) time.Duration {
	if idle < 1 {
		idle = 1
	}
	// Compare in float64: the doubling overflows time.Duration within a
	// few dozen idle polls, so the cap must apply before converting.
	f := float64(e.Initial) * math.Pow(2, float64(idle-1))
	ceiling := float64(e.Max)
	if e.Max <= 0 {
		ceiling = float64(math.MaxInt64 / 2)
	}
	if f > ceiling || math.IsNaN(f) {
		f = ceiling
	}
	d := time.Duration(f)
	// Up to 10% jitter.
	return d + time.Duration(rand.Int64N(int64(d)/10+1))
}
