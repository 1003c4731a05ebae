// Package poller runs the sensor sampling loop.
//
// The loop is the only caller of the sensor and the only writer of the
// latest reading. A failed sample never touches the stored reading; the loop
// logs it and tries again after the shorter retry interval.
package poller

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/dht-sensor/internal/dht"
	"github.com/sweeney/dht-sensor/internal/logic"
	"github.com/sweeney/dht-sensor/internal/mqtt"
)

// Sink receives the outcome of each sample.
type Sink interface {
	SetReading(r dht.Reading, at time.Time)
	RecordFailure(err error, at time.Time)
}

// Options configures a Loop. Zero-valued optional fields are disabled.
type Options struct {
	Source  dht.Source
	Sink    Sink
	Cadence logic.Cadence

	// Publisher, if set, receives every successful reading.
	Publisher mqtt.Publisher

	// OnHeartbeat, if set, is called from the loop when a heartbeat is due.
	Heartbeat   time.Duration
	OnHeartbeat func(hb logic.HeartbeatData)

	// Now and After are injectable for tests; default to time.Now and time.After.
	Now   func() time.Time
	After func(d time.Duration) <-chan time.Time
}

// Loop samples a sensor on a fixed cadence.
type Loop struct {
	opts      Options
	streak    logic.Streak
	heartbeat *logic.Heartbeat
}

// New creates a Loop. Source, Sink and a valid Cadence are required.
func New(opts Options) *Loop {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.After == nil {
		opts.After = time.After
	}
	return &Loop{
		opts:      opts,
		heartbeat: logic.NewHeartbeat(opts.Heartbeat, opts.Now()),
	}
}

// Tick takes one sample and returns how long to idle before the next.
func (l *Loop) Tick() time.Duration {
	r, err := l.opts.Source.Sample()
	now := l.opts.Now()

	outcome := logic.Success
	if err != nil {
		outcome = logic.Failure
	}

	switch change, n := l.streak.Record(outcome); change {
	case logic.StreakStarted:
		log.Printf("sensor read error (%s): %v", dht.Kind(err), err)
	case logic.StreakContinued:
		log.Printf("sensor read error (%s, %d consecutive): %v", dht.Kind(err), n, err)
	case logic.StreakRecovered:
		log.Printf("sensor recovered after %d failed reads", n)
	}

	if err != nil {
		l.opts.Sink.RecordFailure(err, now)
	} else {
		l.opts.Sink.SetReading(r, now)
		if l.opts.Publisher != nil {
			if perr := l.opts.Publisher.PublishReading(r, now); perr != nil {
				log.Printf("publish error: %v", perr)
				// Don't crash on publish failure
			}
		}
	}

	if l.opts.OnHeartbeat != nil {
		if hb := l.heartbeat.Check(now); hb != nil {
			l.opts.OnHeartbeat(*hb)
		}
	}

	return l.opts.Cadence.Next(outcome)
}

// Run samples until ctx is cancelled. It has no other exit: sensor errors
// are transient by definition.
func (l *Loop) Run(ctx context.Context) error {
	for {
		delay := l.Tick()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.opts.After(delay):
		}
	}
}

// ConsecutiveFailures returns the length of the current failure streak.
func (l *Loop) ConsecutiveFailures() int {
	return l.streak.Failures()
}
