package backoff

import (
	"testing"
	"time"
)

func TestConstant(t *testing.T) {
	s := NewConstant(time.Second)
	for _, idle := range []int{1, 5, 100} {
		if got := s.Delay(idle); got != time.Second {
			t.Errorf("Delay(%d) = %v, want 1s", idle, got)
		}
	}
}

func TestExponentialGrowsAndCaps(t *testing.T) {
	s := NewExponential(100*time.Millisecond, time.Second)

	prev := time.Duration(0)
	for idle := 1; idle <= 3; idle++ {
		d := s.Delay(idle)
		if d < prev {
			t.Errorf("Delay(%d) = %v, shrank from %v", idle, d, prev)
		}
		prev = d
	}

	// Far past the cap, jitter aside the delay stays near Max.
	if d := s.Delay(30); d > time.Second+time.Second/10 {
		t.Errorf("Delay(30) = %v, exceeds cap with jitter", d)
	}
}

// Long idle streaks must not overflow the doubling: a worker polling an
// empty queue sits at the cap forever instead of crashing.
func TestExponentialSurvivesLongIdleStreaks(t *testing.T) {
	s := NewExponential(time.Second, time.Minute)
	for _, idle := range []int{30, 35, 40, 63, 64, 1000} {
		d := s.Delay(idle)
		if d < time.Minute || d > time.Minute+time.Minute/10 {
			t.Errorf("Delay(%d) = %v, want within [1m, 1m6s]", idle, d)
		}
	}
}

func TestExponentialUncappedStaysPositive(t *testing.T) {
	s := NewExponential(time.Second, 0)
	for _, idle := range []int{1, 40, 1000} {
		if d := s.Delay(idle); d <= 0 {
			t.Errorf("Delay(%d) = %v, want positive", idle, d)
		}
	}
}

func TestExponentialClampsBadInput(t *testing.T) {
	s := NewExponential(100*time.Millisecond, time.Second)
	if d := s.Delay(0); d < 100*time.Millisecond {
		t.Errorf("Delay(0) = %v, below initial", d)
	}
}
