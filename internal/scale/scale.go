// Package scale provides load-cell channel reading with hardware abstraction.
// The real implementation bit-bangs an HX711-style amplifier over the Linux
// GPIO character device. The fake implementation allows testing without
// hardware.
package scale

// Driver talks to one load-cell amplifier.
type Driver interface {
	// Ready reports whether a fresh conversion is available. It must not
	// block: readiness is sampled once and returned immediately.
	Ready() (bool, error)

	// ReadRaw clocks out the current conversion as signed counts.
	// Callers should only invoke it after Ready returned true.
	ReadRaw() (int32, error)

	// Close releases GPIO resources.
	Close() error
}

// Blinker drives the acquisition heartbeat indicator.
type Blinker interface {
	// Toggle flips the indicator state.
	Toggle() error

	// Close releases the indicator line.
	Close() error
}

// Reading is one converted measurement from a channel.
type Reading struct {
	// Raw is the amplifier counts before tare and scaling.
	Raw int32

	// Value is the converted measurement: (raw - tare) / calibration
	// factor, clamped to be non-negative.
	Value float64
}

// Default pin assignments (BCM numbering) for the four-channel rig.
// Each channel uses a data (DOUT) and clock (PD_SCK) pair.
var DefaultPins = []PinPair{
	{Data: 5, Clock: 6},   // food
	{Data: 13, Clock: 19}, // ai
	{Data: 26, Clock: 21}, // crops
	{Data: 20, Clock: 16}, // animals
}

// DefaultHeartbeatPin is the BCM pin for the acquisition heartbeat LED.
const DefaultHeartbeatPin = 12

// PinPair identifies the two GPIO lines of one amplifier.
type PinPair struct {
	Data  int
	Clock int
}
