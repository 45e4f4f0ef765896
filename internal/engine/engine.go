// Package engine contains the pure convergence logic for bucket water
// levels. This package has NO external dependencies (no GPIO, MQTT, OS, or
// time.Sleep). Time only enters as tick invocations from the caller.
package engine

import (
	"fmt"
	"math"
)

// Bucket tracks one allocation category's convergence state.
type Bucket struct {
	Name string

	// Target is the value Displayed is decaying toward, in [0, MaxPoints].
	Target float64

	// Displayed is the currently shown value. Rises are instantaneous,
	// decay is gradual, and Displayed never crosses below Target in one
	// step.
	Displayed float64

	// LastDelta is the target movement of the most recent update.
	LastDelta float64
}

// Change describes one target update, for downstream event detection.
type Change struct {
	Bucket     string
	PrevTarget float64
	Value      float64 // the applied (clamped) update value
	Delta      float64 // Value - PrevTarget
}

// Level is an immutable snapshot of one bucket.
type Level struct {
	Name      string
	Target    float64
	Displayed float64
}

// Engine holds per-bucket convergence state and the decay tuning.
// It is not safe for concurrent use: the daemon drives it from a single
// loop, which also guarantees samples are applied before the next decay
// tick sees them.
type Engine struct {
	order   []string
	buckets map[string]*Bucket
	cfg     DecayConfig
	manual  bool
}

// New creates an engine with one bucket per name, all starting at
// target = displayed = 0.
func New(buckets []string, cfg DecayConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("decay config: %w", err)
	}
	if len(buckets) == 0 {
		return nil, fmt.Errorf("no buckets configured")
	}

	e := &Engine{
		order:   append([]string(nil), buckets...),
		buckets: make(map[string]*Bucket, len(buckets)),
		cfg:     cfg,
	}
	for _, name := range buckets {
		if _, dup := e.buckets[name]; dup {
			return nil, fmt.Errorf("duplicate bucket %q", name)
		}
		e.buckets[name] = &Bucket{Name: name}
	}
	return e, nil
}

// Config returns the current decay tuning.
func (e *Engine) Config() DecayConfig { return e.cfg }

// SetManual flips the manual latch. While latched, sample-driven SetTarget
// calls are dropped so live sensor data cannot fight a person at the
// controls. Pour stays available.
func (e *Engine) SetManual(on bool) { e.manual = on }

// Manual reports whether the manual latch is set.
func (e *Engine) Manual() bool { return e.manual }

// SetTarget applies a live-sensor update: the observed value is both the
// instantaneous displayed bump and the decay target, so an idle sensor
// reporting zero drains its bucket. Values are clamped to [0, MaxPoints]
// on ingestion and non-finite values are coerced to zero.
// Returns false when the update was dropped (unknown bucket or manual
// latch active).
func (e *Engine) SetTarget(bucket string, value float64) (Change, bool) {
	if e.manual {
		return Change{}, false
	}
	b, ok := e.buckets[bucket]
	if !ok {
		return Change{}, false
	}

	v := e.clamp(value)
	c := Change{Bucket: bucket, PrevTarget: b.Target, Value: v, Delta: v - b.Target}

	if v > b.Displayed {
		b.Displayed = v
	}
	b.Target = v
	b.LastDelta = c.Delta
	return c, true
}

// Pour applies a manual deposit: displayed is bumped by the given points
// and the target is reset to zero, so the splash drains away on its own.
// The delta reported for event detection is the bump amount itself.
func (e *Engine) Pour(bucket string, points float64) (Change, bool) {
	b, ok := e.buckets[bucket]
	if !ok {
		return Change{}, false
	}

	p := e.clamp(points)
	c := Change{Bucket: bucket, PrevTarget: b.Target, Value: p, Delta: p}

	b.Displayed = math.Min(b.Displayed+p, e.cfg.MaxPoints)
	b.Target = 0
	b.LastDelta = p
	return c, true
}

// Tick moves every bucket's displayed value one decay step toward its
// target: step = max(gap*rate, minStep), clamped so displayed never
// crosses below target. MinStep guarantees convergence in bounded time
// even when the rate is tiny.
func (e *Engine) Tick() {
	for _, name := range e.order {
		b := e.buckets[name]
		if b.Displayed <= b.Target {
			continue
		}
		step := (b.Displayed - b.Target) * e.cfg.Rate
		if step < e.cfg.MinStep {
			step = e.cfg.MinStep
		}
		b.Displayed -= step
		if b.Displayed < b.Target {
			b.Displayed = b.Target
		}
	}
}

// Retune replaces the decay rate and recomputes MinStep as a fraction of
// rate*MaxPoints. Negative, NaN, or infinite rates are rejected and the
// previous configuration is retained; the return value reports whether the
// update was applied. Rates above 1 are clamped to 1.
func (e *Engine) Retune(rate float64) bool {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return false
	}
	if rate > 1 {
		rate = 1
	}
	e.cfg.Rate = rate
	e.cfg.MinStep = rate * e.cfg.MaxPoints * e.cfg.MinStepFraction
	if e.cfg.MinStep < 0 {
		e.cfg.MinStep = 0
	}
	return true
}

// Levels returns an ordered snapshot of every bucket.
func (e *Engine) Levels() []Level {
	levels := make([]Level, 0, len(e.order))
	for _, name := range e.order {
		b := e.buckets[name]
		levels = append(levels, Level{Name: name, Target: b.Target, Displayed: b.Displayed})
	}
	return levels
}

func (e *Engine) clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > e.cfg.MaxPoints {
		return e.cfg.MaxPoints
	}
	return v
}
