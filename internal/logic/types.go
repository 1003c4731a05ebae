// Package logic contains pure scheduling logic for the sampling loop.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Outcome is the result of one sample attempt.
type Outcome int

const (
	Success Outcome = iota
	Failure
)

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}

// StreakChange describes what a tick did to the failure streak.
type StreakChange int

const (
	StreakNone      StreakChange = iota
	StreakStarted                // first failure after a success (or at startup)
	StreakContinued              // another failure in an ongoing streak
	StreakRecovered              // first success after one or more failures
)
