package dht

import (
	"fmt"
	"strings"

	godht "github.com/MichaelS11/go-dht"
)

// PeriphSensor reads a DHT22 through the periph.io based go-dht driver.
// The driver bit-bangs the exchange itself and spaces reads out internally,
// so the effective cadence on this transport is never faster than it allows.
type PeriphSensor struct {
	read func() (humidity, temperature float64, err error)
}

// NewPeriphSensor initialises the periph host drivers and binds the named
// pin (e.g. "GPIO4").
func NewPeriphSensor(pinName string) (*PeriphSensor, error) {
	if err := godht.HostInit(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	d, err := godht.NewDHT(pinName, godht.Celsius, "dht22")
	if err != nil {
		return nil, fmt.Errorf("open dht22 on %s: %w", pinName, err)
	}
	return &PeriphSensor{read: d.Read}, nil
}

// Sample performs one exchange with the sensor. Retries belong to the
// caller, so the driver's single-shot Read is used.
func (s *PeriphSensor) Sample() (Reading, error) {
	hum, temp, err := s.read()
	if err != nil {
		return Reading{}, classifyDriverError(err)
	}
	return Reading{Temperature: float32(temp), Humidity: float32(hum)}, nil
}

// classifyDriverError maps go-dht's untyped errors onto the sentinel errors.
func classifyDriverError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "checksum"):
		return fmt.Errorf("%w: %v", ErrChecksum, err)
	case strings.Contains(msg, "missing"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
}

// Close is a no-op; the driver leaves the pin as an input between reads.
func (s *PeriphSensor) Close() error {
	return nil
}
