// Package status provides a thread-safe status tracker for the dht-sensor daemon.
// It holds the latest successful reading and is read by HTTP handlers and the
// MQTT heartbeat while the sampling loop writes to it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/dht-sensor/internal/dht"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	IntervalMs   int64
	RetryMs      int64
	HeartbeatMs  int64
	StaleAfterMs int64
	Driver       string
	Pin          int
	Broker       string
	HTTPAddr     string
}

// Counts tracks sample outcomes since startup.
type Counts struct {
	Successes int
	Failures  int
	Timeout   int
	Checksum  int
	Protocol  int
	Other     int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Reading     dht.Reading
	HasReading  bool
	ReadingTime time.Time

	Counts              Counts
	ConsecutiveFailures int
	LastError           string
	LastErrorTime       time.Time

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Age returns how old the reading is. Zero if there is none.
func (s Snapshot) Age() time.Duration {
	if !s.HasReading {
		return 0
	}
	return s.Now.Sub(s.ReadingTime)
}

// Stale reports whether the reading is older than threshold.
// A threshold <= 0 disables the check. No reading is not stale; it is absent.
func (s Snapshot) Stale(threshold time.Duration) bool {
	if threshold <= 0 || !s.HasReading {
		return false
	}
	return s.Age() > threshold
}

// Tracker holds mutable daemon state behind an RWMutex.
// The sampling loop is the only writer of the reading.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetReading replaces the latest reading.
func (t *Tracker) SetReading(r dht.Reading, at time.Time) {
	t.mu.Lock()
	t.snap.Reading = r
	t.snap.ReadingTime = at
	t.snap.HasReading = true
	t.snap.Counts.Successes++
	t.snap.ConsecutiveFailures = 0
	t.mu.Unlock()
}

// Reading returns a copy of the latest reading and when it was taken.
// ok is false until the first successful sample.
func (t *Tracker) Reading() (r dht.Reading, at time.Time, ok bool) {
	t.mu.RLock()
	r, at, ok = t.snap.Reading, t.snap.ReadingTime, t.snap.HasReading
	t.mu.RUnlock()
	return r, at, ok
}

// RecordFailure counts a failed sample. The reading is left untouched.
func (t *Tracker) RecordFailure(err error, at time.Time) {
	kind := dht.Kind(err)

	t.mu.Lock()
	t.snap.Counts.Failures++
	switch kind {
	case "timeout":
		t.snap.Counts.Timeout++
	case "checksum":
		t.snap.Counts.Checksum++
	case "protocol":
		t.snap.Counts.Protocol++
	default:
		t.snap.Counts.Other++
	}
	t.snap.ConsecutiveFailures++
	if err != nil {
		t.snap.LastError = err.Error()
	}
	t.snap.LastErrorTime = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
