package scale

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestNewChannelRejectsZeroFactor(t *testing.T) {
	drv := NewFakeDriver([]FakeSample{{Ready: true, Raw: 0}})
	if _, err := NewChannel("food", drv, 0, 0); err == nil {
		t.Error("expected error for zero calibration factor")
	}
}

func TestNewChannelRejectsNonFiniteFactor(t *testing.T) {
	drv := NewFakeDriver([]FakeSample{{Ready: true, Raw: 0}})
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := NewChannel("food", drv, f, 0); err == nil {
			t.Errorf("expected error for calibration factor %v", f)
		}
	}
}

func TestNewChannelAcceptsNegativeFactor(t *testing.T) {
	drv := NewFakeDriver([]FakeSample{{Ready: true, Raw: 0}})
	if _, err := NewChannel("food", drv, -420.5, 0); err != nil {
		t.Errorf("unexpected error for negative factor: %v", err)
	}
}

func TestInitializeStoredOffset(t *testing.T) {
	// Driver never becomes ready; a stored offset must not wait for it.
	drv := NewFakeDriver([]FakeSample{{Ready: false}})
	c, err := NewChannel("food", drv, 100, 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if err := c.Initialize(DefaultTareTimeout); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("stored offset should apply without blocking, took %v", elapsed)
	}
	if !c.Calibrated() {
		t.Error("channel with stored offset should be calibrated")
	}
}

func TestInitializeLiveTare(t *testing.T) {
	drv := NewFakeDriver([]FakeSample{
		{Ready: false},
		{Ready: true, Raw: 8123},
		{Ready: true, Raw: 9000},
	})
	c, err := NewChannel("food", drv, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Initialize(DefaultTareTimeout); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Calibrated() {
		t.Error("channel should be calibrated after live tare")
	}

	// Next reading is converted against the captured tare.
	r, ok, err := c.Poll()
	if err != nil || !ok {
		t.Fatalf("expected reading, got ok=%v err=%v", ok, err)
	}
	want := (9000.0 - 8123.0) / 100.0
	if r.Value != want {
		t.Errorf("expected value %v, got %v", want, r.Value)
	}
}

func TestInitializeTimeout(t *testing.T) {
	drv := NewFakeDriver([]FakeSample{{Ready: false}})
	c, err := NewChannel("food", drv, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = c.Initialize(30 * time.Millisecond)
	if !errors.Is(err, ErrTareTimeout) {
		t.Fatalf("expected ErrTareTimeout, got %v", err)
	}
	if c.Calibrated() {
		t.Error("timed-out channel should be uncalibrated")
	}

	// Degraded mode: channel keeps reporting raw-relative values.
	drv.Samples = []FakeSample{{Ready: true, Raw: 500}}
	drv.Reset()
	r, ok, err := c.Poll()
	if err != nil || !ok {
		t.Fatalf("expected reading, got ok=%v err=%v", ok, err)
	}
	if r.Value != 5.0 {
		t.Errorf("expected raw-relative value 5.0, got %v", r.Value)
	}
}

func TestPollNotReady(t *testing.T) {
	drv := NewFakeDriver([]FakeSample{{Ready: false}})
	c, err := NewChannel("food", drv, 100, 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, ok, err := c.Poll()
	if err != nil {
		t.Fatalf("not-ready must not be an error, got %v", err)
	}
	if ok {
		t.Error("expected not-ready result")
	}
}

func TestPollConversion(t *testing.T) {
	tests := []struct {
		name   string
		factor float64
		tare   int32
		raw    int32
		want   float64
	}{
		{"simple", 100, 8000, 9000, 10},
		{"negative factor flips polarity", -100, 8000, 7000, 10},
		{"noise below tare clamps to zero", 100, 8000, 7990, 0},
		{"exactly tare", 100, 8000, 8000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := NewFakeDriver([]FakeSample{{Ready: true, Raw: tt.raw}})
			c, err := NewChannel("food", drv, tt.factor, tt.tare)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			r, ok, err := c.Poll()
			if err != nil || !ok {
				t.Fatalf("expected reading, got ok=%v err=%v", ok, err)
			}
			if r.Value != tt.want {
				t.Errorf("expected %v, got %v", tt.want, r.Value)
			}
			if r.Raw != tt.raw {
				t.Errorf("expected raw %d, got %d", tt.raw, r.Raw)
			}
		})
	}
}

func TestPollReadError(t *testing.T) {
	drv := NewFakeDriver([]FakeSample{{Ready: true, Raw: 9000}})
	drv.ReadError = errors.New("bus glitch")
	c, err := NewChannel("food", drv, 100, 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = c.Poll()
	if err == nil {
		t.Error("expected read error to propagate")
	}
}

func TestLastRawTracksPolls(t *testing.T) {
	drv := NewFakeDriver([]FakeSample{
		{Ready: true, Raw: 9000},
		{Ready: false},
		{Ready: true, Raw: 9500},
	})
	c, err := NewChannel("food", drv, 100, 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Poll()
	if c.LastRaw() != 9000 {
		t.Errorf("expected last raw 9000, got %d", c.LastRaw())
	}

	// Not-ready tick must not disturb the last raw value.
	c.Poll()
	if c.LastRaw() != 9000 {
		t.Errorf("expected last raw unchanged at 9000, got %d", c.LastRaw())
	}

	c.Poll()
	if c.LastRaw() != 9500 {
		t.Errorf("expected last raw 9500, got %d", c.LastRaw())
	}
}
