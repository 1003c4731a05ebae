//go:build linux

package dht

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// CdevSensor reads a DHT22 through the Linux GPIO character device.
// The line is requested once with both-edge detection; each sample drives
// the start pulse and then timestamps the sensor's response edges.
type CdevSensor struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	mu      sync.Mutex
	edges   []edge
	lastSeq uint32
	dropped bool
}

// NewCdevSensor opens the given chip and requests the data line.
func NewCdevSensor(chipName string, pin int) (*CdevSensor, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("dht-sensor"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	s := &CdevSensor{chip: chip}

	// Idle state is input with pull-up; the sensor holds the line high.
	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventBufferSize(eventBufferSize),
		gpiocdev.WithEventHandler(s.handleEvent))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request data pin %d: %w", pin, err)
	}
	s.line = line
	return s, nil
}

func (s *CdevSensor) handleEvent(evt gpiocdev.LineEvent) {
	s.mu.Lock()
	if seqnoGap(s.lastSeq, evt.LineSeqno) {
		s.dropped = true
	}
	s.lastSeq = evt.LineSeqno
	s.edges = append(s.edges, edge{
		at:     evt.Timestamp,
		rising: evt.Type == gpiocdev.LineEventRisingEdge,
	})
	s.mu.Unlock()
}

// Sample performs one exchange with the sensor.
func (s *CdevSensor) Sample() (Reading, error) {
	s.mu.Lock()
	s.edges = s.edges[:0]
	s.dropped = false
	s.mu.Unlock()

	// Start signal: hold low, then release back to pulled-up input.
	if err := s.line.Reconfigure(gpiocdev.AsOutput(0)); err != nil {
		return Reading{}, fmt.Errorf("%w: drive start signal: %v", ErrProtocol, err)
	}
	time.Sleep(StartLow)
	if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithBothEdges); err != nil {
		return Reading{}, fmt.Errorf("%w: release line: %v", ErrProtocol, err)
	}

	time.Sleep(CaptureWindow)

	s.mu.Lock()
	edges := append([]edge(nil), s.edges...)
	dropped := s.dropped
	s.mu.Unlock()

	if dropped {
		return Reading{}, fmt.Errorf("%w: kernel dropped edge events", ErrProtocol)
	}
	if len(edges) == 0 {
		return Reading{}, fmt.Errorf("%w: no response", ErrTimeout)
	}
	return DecodePulses(highPulses(edges))
}

// Close releases GPIO resources.
// Leaves the line as a pulled-up input, the sensor's idle state.
func (s *CdevSensor) Close() error {
	var errs []error

	if s.line != nil {
		if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure data pin: %w", err))
		}
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data pin: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
