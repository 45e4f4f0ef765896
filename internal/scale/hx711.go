//go:build linux

package scale

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// HX711 reads one load-cell amplifier over the Linux GPIO character device.
// The amplifier pulls its data line low when a conversion is ready; the
// 24-bit result is then clocked out MSB first. One extra clock pulse leaves
// the part configured for gain 128 on channel A.
type HX711 struct {
	chip  *gpiocdev.Chip
	data  *gpiocdev.Line
	clock *gpiocdev.Line
}

// NewHX711 requests the data and clock lines for one amplifier.
func NewHX711(chip *gpiocdev.Chip, pins PinPair) (*HX711, error) {
	data, err := chip.RequestLine(pins.Data, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request data pin %d: %w", pins.Data, err)
	}

	clock, err := chip.RequestLine(pins.Clock, gpiocdev.AsOutput(0))
	if err != nil {
		data.Close()
		return nil, fmt.Errorf("request clock pin %d: %w", pins.Clock, err)
	}

	return &HX711{chip: chip, data: data, clock: clock}, nil
}

// Ready reports whether a conversion is available. The data line sits high
// while the part converts and drops low when a result can be clocked out.
func (h *HX711) Ready() (bool, error) {
	v, err := h.data.Value()
	if err != nil {
		return false, fmt.Errorf("read data pin: %w", err)
	}
	return v == 0, nil
}

// ReadRaw clocks out the pending 24-bit conversion and sign-extends it.
func (h *HX711) ReadRaw() (int32, error) {
	var raw uint32
	for i := 0; i < 24; i++ {
		if err := h.pulse(); err != nil {
			return 0, err
		}
		v, err := h.data.Value()
		if err != nil {
			return 0, fmt.Errorf("read bit %d: %w", i, err)
		}
		raw = raw<<1 | uint32(v&1)
	}

	// 25th pulse sets gain 128 for the next conversion.
	if err := h.pulse(); err != nil {
		return 0, err
	}

	// Sign-extend the 24-bit two's complement result.
	if raw&0x800000 != 0 {
		raw |= 0xFF000000
	}
	return int32(raw), nil
}

func (h *HX711) pulse() error {
	if err := h.clock.SetValue(1); err != nil {
		return fmt.Errorf("clock high: %w", err)
	}
	// The part needs >=0.2us of high time; a microsecond sleep is the
	// shortest the scheduler reliably gives us and is still far below
	// the 60us power-down threshold.
	time.Sleep(time.Microsecond)
	if err := h.clock.SetValue(0); err != nil {
		return fmt.Errorf("clock low: %w", err)
	}
	time.Sleep(time.Microsecond)
	return nil
}

// Close releases both lines. The shared chip handle is owned by the caller.
func (h *HX711) Close() error {
	var errs []error
	if h.clock != nil {
		// Leave the clock high long enough to power the part down.
		if err := h.clock.SetValue(1); err != nil {
			errs = append(errs, fmt.Errorf("power down: %w", err))
		}
		if err := h.clock.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close clock: %w", err))
		}
	}
	if h.data != nil {
		if err := h.data.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// LED drives the heartbeat indicator on a GPIO output line.
type LED struct {
	line *gpiocdev.Line
	on   bool
}

// NewLED requests the heartbeat line as an output, initially off.
func NewLED(chip *gpiocdev.Chip, pin int) (*LED, error) {
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request heartbeat pin %d: %w", pin, err)
	}
	return &LED{line: line}, nil
}

// Toggle flips the indicator.
func (l *LED) Toggle() error {
	l.on = !l.on
	v := 0
	if l.on {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("set heartbeat: %w", err)
	}
	return nil
}

// Close turns the indicator off and releases the line.
func (l *LED) Close() error {
	if l.line == nil {
		return nil
	}
	l.line.SetValue(0)
	return l.line.Close()
}

// Rig bundles the shared GPIO chip, the per-channel drivers, and the
// heartbeat indicator for the physical installation.
type Rig struct {
	chip *gpiocdev.Chip

	// Drivers holds one amplifier per channel, in channel order.
	Drivers []Driver

	// Heartbeat is the acquisition heartbeat LED.
	Heartbeat Blinker
}

// OpenRig opens the default GPIO chip and requests every channel's line
// pair plus the heartbeat LED.
func OpenRig(pins []PinPair, heartbeatPin int) (*Rig, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	rig := &Rig{chip: chip}
	for _, p := range pins {
		drv, err := NewHX711(chip, p)
		if err != nil {
			rig.Close()
			return nil, err
		}
		rig.Drivers = append(rig.Drivers, drv)
	}

	led, err := NewLED(chip, heartbeatPin)
	if err != nil {
		rig.Close()
		return nil, err
	}
	rig.Heartbeat = led

	return rig, nil
}

// Close releases every requested line and the chip.
func (r *Rig) Close() error {
	var errs []error
	for _, d := range r.Drivers {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Heartbeat != nil {
		if err := r.Heartbeat.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
