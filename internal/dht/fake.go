package dht

import (
	"errors"
	"sync"
	"time"
)

// FakeSource is a test double that returns scripted samples.
type FakeSource struct {
	// Samples contains scripted results to return.
	// Each call to Sample() consumes the next entry.
	Samples []FakeSample

	// Now stamps Calls; defaults to time.Now.
	Now func() time.Time

	mu     sync.Mutex
	index  int
	calls  []time.Time
	closed bool
}

// FakeSample is a single scripted result: a reading or an error.
type FakeSample struct {
	Reading Reading
	Err     error
}

// NewFakeSource creates a FakeSource with the given samples.
func NewFakeSource(samples ...FakeSample) *FakeSource {
	return &FakeSource{Samples: samples}
}

// Sample returns the next scripted result.
// If samples are exhausted, returns the last one repeatedly.
func (f *FakeSource) Sample() (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	f.calls = append(f.calls, now())

	if len(f.Samples) == 0 {
		return Reading{}, errors.New("no samples configured")
	}

	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.Reading, s.Err
}

// Calls returns the times at which Sample was invoked.
func (f *FakeSource) Calls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.calls...)
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeSource) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset rewinds the script and clears recorded calls.
func (f *FakeSource) Reset() {
	f.mu.Lock()
	f.index = 0
	f.calls = nil
	f.closed = false
	f.mu.Unlock()
}
