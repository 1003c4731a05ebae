// Package dht reads a DHT22 (AM2302) humidity/temperature sensor.
// The real transports drive the single-wire protocol on one GPIO line.
// The fake implementation allows testing without hardware.
package dht

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Reading is one successful temperature/humidity sample.
type Reading struct {
	Temperature float32 // °C
	Humidity    float32 // %RH
}

// String renders the reading as "21.5°C, 40% RH".
func (r Reading) String() string {
	return fmt.Sprintf("%s°C, %s%% RH", formatFloat(r.Temperature), formatFloat(r.Humidity))
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}

// Source samples the sensor. Implementations are not safe for concurrent use.
type Source interface {
	// Sample performs one protocol exchange and returns the decoded reading.
	// Errors wrap one of ErrTimeout, ErrChecksum or ErrProtocol.
	Sample() (Reading, error)

	// Close releases the GPIO line.
	Close() error
}

// Sensor errors. Transports wrap these with context.
var (
	ErrTimeout  = errors.New("dht: timeout waiting for sensor")
	ErrChecksum = errors.New("dht: checksum mismatch")
	ErrProtocol = errors.New("dht: protocol violation")
)

// Kind names the class of a sensor error for logs and counters.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrChecksum):
		return "checksum"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	default:
		return "other"
	}
}

// Timing constants for the DHT22.
const (
	// MinSampleGap is the shortest interval between two start signals
	// that still yields reliable frames.
	MinSampleGap = 200 * time.Millisecond

	// StartLow is how long the host holds the line low to wake the sensor.
	StartLow = 1100 * time.Microsecond

	// CaptureWindow bounds one exchange: response plus 40 bits is ~5ms.
	CaptureWindow = 8 * time.Millisecond

	// bitThreshold separates a "0" high pulse (~26µs) from a "1" (~70µs).
	bitThreshold = 50 * time.Microsecond
)

// DefaultPin is the BCM line the sensor data pin is wired to.
const DefaultPin = 4
