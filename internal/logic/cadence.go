package logic

import (
	"fmt"
	"time"
)

// Cadence decides how long the loop idles between samples.
type Cadence struct {
	Steady time.Duration // after a successful sample
	Retry  time.Duration // after a failed sample
	Floor  time.Duration // hardware minimum between start signals
}

// Validate rejects intervals the sensor cannot sustain.
func (c Cadence) Validate() error {
	if c.Floor <= 0 {
		return fmt.Errorf("floor must be positive, got %v", c.Floor)
	}
	if c.Steady < c.Floor {
		return fmt.Errorf("steady interval %v below sensor minimum %v", c.Steady, c.Floor)
	}
	if c.Retry < c.Floor {
		return fmt.Errorf("retry interval %v below sensor minimum %v", c.Retry, c.Floor)
	}
	return nil
}

// Next returns the delay before the following sample. The result is never
// below Floor, even for a Cadence that failed Validate.
func (c Cadence) Next(o Outcome) time.Duration {
	d := c.Steady
	if o == Failure {
		d = c.Retry
	}
	if d < c.Floor {
		d = c.Floor
	}
	return d
}

// Streak tracks consecutive sample failures.
type Streak struct {
	failures int
}

// Record folds one outcome into the streak and reports the transition.
// The returned count is the streak length before a recovery, or the
// current length otherwise.
func (s *Streak) Record(o Outcome) (StreakChange, int) {
	if o == Success {
		n := s.failures
		s.failures = 0
		if n > 0 {
			return StreakRecovered, n
		}
		return StreakNone, 0
	}

	s.failures++
	if s.failures == 1 {
		return StreakStarted, 1
	}
	return StreakContinued, s.failures
}

// Failures returns the current number of consecutive failures.
func (s *Streak) Failures() int {
	return s.failures
}
