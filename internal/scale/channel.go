package scale

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"
)

// ErrTareTimeout is returned by Initialize when the hardware never became
// ready within the tare window. The channel stays usable: it reports
// raw-relative values with a zero offset until recalibrated.
var ErrTareTimeout = errors.New("scale: tare timeout, channel uncalibrated")

// DefaultTareTimeout bounds the live-tare wait during initialization.
const DefaultTareTimeout = 400 * time.Millisecond

// tarePollInterval is the spacing of readiness checks during tare capture.
const tarePollInterval = 10 * time.Millisecond

// Channel owns one physical sensing channel: its driver, calibration
// factor, and tare offset.
type Channel struct {
	name    string
	drv     Driver
	factor  float64
	tare    int32
	tared   bool // true once a tare offset (stored or live) is applied
	lastRaw int32
}

// NewChannel creates a channel over the given driver. A zero or non-finite
// calibration factor would make unit conversion undefined and is rejected.
// A negative factor is valid: it flips the polarity of a load cell wired
// backwards.
func NewChannel(name string, drv Driver, factor float64, tareOffset int32) (*Channel, error) {
	if factor == 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("channel %s: invalid calibration factor %v", name, factor)
	}
	return &Channel{
		name:   name,
		drv:    drv,
		factor: factor,
		tare:   tareOffset,
	}, nil
}

// Name returns the channel's bucket name.
func (c *Channel) Name() string { return c.name }

// Initialize captures the channel's tare. A non-zero stored offset is
// applied directly with no hardware wait. Otherwise the channel waits up to
// timeout for readiness and captures a live tare with the platform empty.
// On timeout the channel proceeds with offset 0 and ErrTareTimeout is
// returned; callers log it and continue, the condition is degraded but not
// fatal.
func (c *Channel) Initialize(timeout time.Duration) error {
	if c.tare != 0 {
		c.tared = true
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultTareTimeout
	}

	deadline := time.Now().Add(timeout)
	for {
		ready, err := c.drv.Ready()
		if err != nil {
			return fmt.Errorf("channel %s: tare readiness check: %w", c.name, err)
		}
		if ready {
			raw, err := c.drv.ReadRaw()
			if err != nil {
				return fmt.Errorf("channel %s: tare read: %w", c.name, err)
			}
			c.tare = raw
			c.tared = true
			log.Printf("scale: channel %s tared at %d counts", c.name, raw)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("channel %s: %w", c.name, ErrTareTimeout)
		}
		time.Sleep(tarePollInterval)
	}
}

// Calibrated reports whether a tare offset has been applied.
func (c *Channel) Calibrated() bool { return c.tared }

// LastRaw returns the most recent raw counts seen by Poll.
func (c *Channel) LastRaw() int32 { return c.lastRaw }

// Poll checks readiness exactly once. A not-ready channel yields
// (zero Reading, false, nil): no new data this tick, not an error.
func (c *Channel) Poll() (Reading, bool, error) {
	ready, err := c.drv.Ready()
	if err != nil {
		return Reading{}, false, fmt.Errorf("channel %s: readiness: %w", c.name, err)
	}
	if !ready {
		return Reading{}, false, nil
	}

	raw, err := c.drv.ReadRaw()
	if err != nil {
		return Reading{}, false, fmt.Errorf("channel %s: read: %w", c.name, err)
	}
	c.lastRaw = raw

	return Reading{Raw: raw, Value: c.convert(raw)}, true, nil
}

// convert applies tare and calibration. Small negative noise near zero and
// any non-finite result are coerced to 0 rather than propagated.
func (c *Channel) convert(raw int32) float64 {
	v := (float64(raw) - float64(c.tare)) / c.factor
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
