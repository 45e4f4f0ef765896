//go:build !linux

package scale

import "errors"

var errUnsupported = errors.New("scale: not supported on this platform (requires Linux)")

// HX711 is not available on non-Linux platforms.
type HX711 struct{}

// NewHX711 returns an error on non-Linux platforms.
func NewHX711(chip interface{}, pins PinPair) (*HX711, error) {
	return nil, errUnsupported
}

// Ready is not implemented on non-Linux platforms.
func (h *HX711) Ready() (bool, error) { return false, errUnsupported }

// ReadRaw is not implemented on non-Linux platforms.
func (h *HX711) ReadRaw() (int32, error) { return 0, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (h *HX711) Close() error { return nil }

// LED is not available on non-Linux platforms.
type LED struct{}

// NewLED returns an error on non-Linux platforms.
func NewLED(chip interface{}, pin int) (*LED, error) {
	return nil, errUnsupported
}

// Toggle is not implemented on non-Linux platforms.
func (l *LED) Toggle() error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (l *LED) Close() error { return nil }

// Rig is not available on non-Linux platforms.
type Rig struct {
	Drivers   []Driver
	Heartbeat Blinker
}

// OpenRig returns an error on non-Linux platforms.
func OpenRig(pins []PinPair, heartbeatPin int) (*Rig, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *Rig) Close() error { return nil }
