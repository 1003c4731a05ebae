//go:build !linux

package dht

import "errors"

// CdevSensor is not available on non-Linux platforms.
type CdevSensor struct{}

// NewCdevSensor returns an error on non-Linux platforms.
func NewCdevSensor(chipName string, pin int) (*CdevSensor, error) {
	return nil, errors.New("dht: gpio character device not supported on this platform (requires Linux)")
}

// Sample is not implemented on non-Linux platforms.
func (s *CdevSensor) Sample() (Reading, error) {
	return Reading{}, errors.New("dht: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *CdevSensor) Close() error {
	return nil
}
