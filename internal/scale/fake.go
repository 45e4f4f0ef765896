package scale

import "errors"

// FakeDriver is a test double that returns scripted conversions.
type FakeDriver struct {
	// Samples contains scripted (ready, raw) pairs. Each call to Ready()
	// inspects the current sample; ReadRaw() consumes it.
	Samples []FakeSample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadyError, if set, will be returned by Ready()
	ReadyError error

	// ReadError, if set, will be returned by ReadRaw()
	ReadError error
}

// FakeSample represents one scripted conversion.
type FakeSample struct {
	Ready bool
	Raw   int32
}

// NewFakeDriver creates a FakeDriver with the given samples.
func NewFakeDriver(samples []FakeSample) *FakeDriver {
	return &FakeDriver{Samples: samples}
}

// Ready reports the current sample's readiness. A not-ready sample is
// consumed so the script advances on skipped ticks too.
func (f *FakeDriver) Ready() (bool, error) {
	if f.ReadyError != nil {
		return false, f.ReadyError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}
	s := f.Samples[f.index]
	if !s.Ready {
		f.advance()
	}
	return s.Ready, nil
}

// ReadRaw returns the current sample's counts and advances the script.
// If samples are exhausted, the last sample repeats.
func (f *FakeDriver) ReadRaw() (int32, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	raw := f.Samples[f.index].Raw
	f.advance()
	return raw, nil
}

func (f *FakeDriver) advance() {
	if f.index < len(f.Samples)-1 {
		f.index++
	}
}

// Close marks the driver as closed.
func (f *FakeDriver) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the driver to the beginning of samples.
func (f *FakeDriver) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeBlinker counts heartbeat toggles for test assertions.
type FakeBlinker struct {
	Toggles int
	On      bool
	Closed  bool

	// ToggleError, if set, will be returned by Toggle()
	ToggleError error
}

// Toggle flips the fake indicator.
func (f *FakeBlinker) Toggle() error {
	if f.ToggleError != nil {
		return f.ToggleError
	}
	f.Toggles++
	f.On = !f.On
	return nil
}

// Close marks the blinker as closed.
func (f *FakeBlinker) Close() error {
	f.Closed = true
	return nil
}
