package dht

import (
	"fmt"
	"time"
)

// frameBits is the number of data bits in one DHT22 frame.
const frameBits = 40

// maxBitWidth is the longest high pulse a data bit can have. The datasheet
// gives ~70µs for a "1"; anything well past that is line noise.
const maxBitWidth = 120 * time.Microsecond

// eventBufferSize holds every edge of one exchange: the start release, the
// 80µs response and two edges per data bit, with slack.
const eventBufferSize = 2*frameBits + 8

// DecodePulses converts the widths of the high pulses seen on the line into
// a reading. Only the last 40 pulses are data bits; anything earlier is the
// sensor's response preamble or the host releasing the line.
func DecodePulses(highs []time.Duration) (Reading, error) {
	if len(highs) < frameBits {
		return Reading{}, fmt.Errorf("%w: got %d of %d bits", ErrTimeout, len(highs), frameBits)
	}
	bits := highs[len(highs)-frameBits:]

	var frame [5]byte
	for i, w := range bits {
		if w <= 0 || w > maxBitWidth {
			return Reading{}, fmt.Errorf("%w: bit %d has width %v", ErrProtocol, i, w)
		}
		frame[i/8] <<= 1
		if w > bitThreshold {
			frame[i/8] |= 1
		}
	}
	return DecodeFrame(frame)
}

// DecodeFrame validates the checksum and converts the DHT22 encoding.
// Humidity and temperature are big-endian tenths; bit 15 of temperature is
// the sign.
func DecodeFrame(frame [5]byte) (Reading, error) {
	sum := frame[0] + frame[1] + frame[2] + frame[3]
	if sum != frame[4] {
		return Reading{}, fmt.Errorf("%w: frame % x sums to %#02x", ErrChecksum, frame, sum)
	}

	rawHum := uint16(frame[0])<<8 | uint16(frame[1])
	rawTemp := uint16(frame[2])<<8 | uint16(frame[3])

	hum := float32(rawHum) / 10
	temp := float32(rawTemp&0x7fff) / 10
	if rawTemp&0x8000 != 0 {
		temp = -temp
	}

	if hum > 100 {
		return Reading{}, fmt.Errorf("%w: humidity %v out of range", ErrProtocol, hum)
	}
	if temp < -40 || temp > 80 {
		return Reading{}, fmt.Errorf("%w: temperature %v out of range", ErrProtocol, temp)
	}
	return Reading{Temperature: temp, Humidity: hum}, nil
}

// EncodeFrame is the inverse of DecodeFrame. The fake transports use it to
// synthesise pulse trains.
func EncodeFrame(r Reading) [5]byte {
	hum := uint16(r.Humidity*10 + 0.5)
	t := r.Temperature
	var sign uint16
	if t < 0 {
		sign = 0x8000
		t = -t
	}
	temp := uint16(t*10+0.5) | sign

	f := [5]byte{byte(hum >> 8), byte(hum), byte(temp >> 8), byte(temp)}
	f[4] = f[0] + f[1] + f[2] + f[3]
	return f
}

// PulsesFor returns the high-pulse widths a sensor would produce for frame,
// preceded by the 80µs response pulse.
func PulsesFor(frame [5]byte) []time.Duration {
	out := make([]time.Duration, 0, frameBits+1)
	out = append(out, 80*time.Microsecond)
	for _, b := range frame {
		for i := 7; i >= 0; i-- {
			if b&(1<<uint(i)) != 0 {
				out = append(out, 70*time.Microsecond)
			} else {
				out = append(out, 26*time.Microsecond)
			}
		}
	}
	return out
}

// highPulses pairs rising and falling edges into high-pulse widths.
// Edges must be in time order.
func highPulses(edges []edge) []time.Duration {
	var out []time.Duration
	var riseAt time.Duration
	rising := false
	for _, e := range edges {
		switch {
		case e.rising:
			riseAt = e.at
			rising = true
		case rising:
			out = append(out, e.at-riseAt)
			rising = false
		}
	}
	return out
}

// seqnoGap reports whether the event numbered cur does not directly follow
// prev. prev is zero before the first event.
func seqnoGap(prev, cur uint32) bool {
	return prev != 0 && cur > prev+1
}

// edge is a single line transition relative to an arbitrary epoch.
type edge struct {
	at     time.Duration
	rising bool
}
