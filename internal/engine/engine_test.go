package engine

import (
	"math"
	"testing"
	"time"
)

func testConfig() DecayConfig {
	return DecayConfig{
		Rate:            0.25,
		MinStep:         4,
		MinStepFraction: 0.05,
		Interval:        250 * time.Millisecond,
		MaxPoints:       100,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New([]string{"food", "ai", "crops", "animals"}, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	bad := []DecayConfig{
		{Rate: -0.1, MinStep: 1, Interval: time.Second, MaxPoints: 100},
		{Rate: 1.5, MinStep: 1, Interval: time.Second, MaxPoints: 100},
		{Rate: math.NaN(), MinStep: 1, Interval: time.Second, MaxPoints: 100},
		{Rate: 0.5, MinStep: -1, Interval: time.Second, MaxPoints: 100},
		{Rate: 0.5, MinStep: 1, Interval: 0, MaxPoints: 100},
		{Rate: 0.5, MinStep: 1, Interval: time.Second, MaxPoints: 0},
	}
	for i, cfg := range bad {
		if _, err := New([]string{"food"}, cfg); err == nil {
			t.Errorf("config %d: expected validation error", i)
		}
	}
}

func TestNewRejectsDuplicateBuckets(t *testing.T) {
	if _, err := New([]string{"food", "food"}, testConfig()); err == nil {
		t.Error("expected error for duplicate bucket")
	}
}

func TestRiseIsInstant(t *testing.T) {
	e := newTestEngine(t)

	c, ok := e.SetTarget("food", 30)
	if !ok {
		t.Fatal("SetTarget rejected")
	}
	if c.Delta != 30 {
		t.Errorf("expected delta 30, got %v", c.Delta)
	}

	lv := e.Levels()[0]
	if lv.Displayed != 30 {
		t.Errorf("rise must be instantaneous: expected displayed 30, got %v", lv.Displayed)
	}
	if lv.Target != 30 {
		t.Errorf("expected target 30, got %v", lv.Target)
	}
}

func TestSetTargetClampsOnIngestion(t *testing.T) {
	e := newTestEngine(t)

	c, _ := e.SetTarget("food", 250)
	if c.Value != 100 {
		t.Errorf("expected clamp to max points 100, got %v", c.Value)
	}

	c, _ = e.SetTarget("food", -5)
	if c.Value != 0 {
		t.Errorf("expected negative clamped to 0, got %v", c.Value)
	}

	c, _ = e.SetTarget("food", math.NaN())
	if c.Value != 0 {
		t.Errorf("expected NaN coerced to 0, got %v", c.Value)
	}
}

func TestSetTargetUnknownBucket(t *testing.T) {
	e := newTestEngine(t)
	if _, ok := e.SetTarget("lava", 10); ok {
		t.Error("expected unknown bucket to be dropped")
	}
}

func TestDecayConvergesWithoutOvershoot(t *testing.T) {
	e := newTestEngine(t)
	e.SetTarget("food", 100)
	e.SetTarget("food", 0) // idle sensor: decay to zero

	// decayRate=0.25, minStep=4: 100 -> 75 -> 56.25 -> ...
	e.Tick()
	if got := e.Levels()[0].Displayed; got != 75 {
		t.Fatalf("tick 1: expected 75, got %v", got)
	}
	e.Tick()
	if got := e.Levels()[0].Displayed; got != 56.25 {
		t.Fatalf("tick 2: expected 56.25, got %v", got)
	}

	prev := 56.25
	for i := 0; i < 200; i++ {
		e.Tick()
		got := e.Levels()[0].Displayed
		if got > prev {
			t.Fatalf("tick %d: displayed increased %v -> %v", i+3, prev, got)
		}
		if got < 0 {
			t.Fatalf("tick %d: displayed went negative: %v", i+3, got)
		}
		if got == 0 {
			return
		}
		if got == prev {
			t.Fatalf("tick %d: displayed stalled at %v before reaching target", i+3, got)
		}
		prev = got
	}
	t.Fatalf("displayed never converged to 0, stuck at %v", prev)
}

func TestMinStepGuaranteesBoundedConvergence(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = 0.001 // near-zero rate alone would take forever
	cfg.MinStep = 5
	e, err := New([]string{"food"}, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.SetTarget("food", 100)
	e.SetTarget("food", 0)

	// MinStep floors each tick at 5 points: 20 ticks to drain 100.
	for i := 0; i < 20; i++ {
		e.Tick()
	}
	if got := e.Levels()[0].Displayed; got != 0 {
		t.Errorf("expected drained after 20 ticks, got %v", got)
	}
}

func TestDecayStepClampsAtTarget(t *testing.T) {
	e := newTestEngine(t)
	e.SetTarget("food", 100)
	e.SetTarget("food", 98)

	// Gap is 2, below MinStep 4: the step must clamp at the target
	// instead of crossing it.
	e.Tick()
	if got := e.Levels()[0].Displayed; got != 98 {
		t.Errorf("expected displayed clamped at target 98, got %v", got)
	}

	// At target: further ticks are no-ops.
	e.Tick()
	if got := e.Levels()[0].Displayed; got != 98 {
		t.Errorf("expected displayed stable at 98, got %v", got)
	}
}

func TestPourBumpsAndDrains(t *testing.T) {
	e := newTestEngine(t)

	c, ok := e.Pour("food", 25)
	if !ok {
		t.Fatal("Pour rejected")
	}
	if c.Delta != 25 {
		t.Errorf("expected delta 25, got %v", c.Delta)
	}

	lv := e.Levels()[0]
	if lv.Displayed != 25 {
		t.Errorf("expected displayed 25, got %v", lv.Displayed)
	}
	if lv.Target != 0 {
		t.Errorf("pour must reset target to 0, got %v", lv.Target)
	}

	// Second pour stacks on the displayed value, capped at max points.
	e.Pour("food", 90)
	if got := e.Levels()[0].Displayed; got != 100 {
		t.Errorf("expected displayed capped at 100, got %v", got)
	}
}

func TestManualLatchDropsSamples(t *testing.T) {
	e := newTestEngine(t)
	e.SetManual(true)

	if _, ok := e.SetTarget("food", 50); ok {
		t.Error("sample-driven update must be dropped while manual latch is set")
	}
	if _, ok := e.Pour("food", 10); !ok {
		t.Error("pour must stay available while manual latch is set")
	}

	e.SetManual(false)
	if _, ok := e.SetTarget("food", 50); !ok {
		t.Error("sample-driven update must resume after latch clears")
	}
}

func TestRetune(t *testing.T) {
	e := newTestEngine(t)

	if !e.Retune(0.5) {
		t.Fatal("valid retune rejected")
	}
	cfg := e.Config()
	if cfg.Rate != 0.5 {
		t.Errorf("expected rate 0.5, got %v", cfg.Rate)
	}
	// MinStep recomputed as fraction of rate*maxPoints: 0.5*100*0.05.
	if cfg.MinStep != 2.5 {
		t.Errorf("expected min step 2.5, got %v", cfg.MinStep)
	}

	// Invalid rates leave the previous configuration untouched.
	for _, bad := range []float64{-0.1, math.NaN(), math.Inf(1)} {
		if e.Retune(bad) {
			t.Errorf("retune accepted invalid rate %v", bad)
		}
		if got := e.Config().Rate; got != 0.5 {
			t.Errorf("rate changed to %v after invalid retune", got)
		}
	}

	// Rates above 1 clamp to 1 to keep the config invariant.
	if !e.Retune(3) {
		t.Fatal("retune rejected clampable rate")
	}
	if got := e.Config().Rate; got != 1 {
		t.Errorf("expected rate clamped to 1, got %v", got)
	}
}

func TestLevelsPreserveBucketOrder(t *testing.T) {
	e := newTestEngine(t)
	want := []string{"food", "ai", "crops", "animals"}
	levels := e.Levels()
	if len(levels) != len(want) {
		t.Fatalf("expected %d levels, got %d", len(want), len(levels))
	}
	for i, name := range want {
		if levels[i].Name != name {
			t.Errorf("level %d: expected %s, got %s", i, name, levels[i].Name)
		}
	}
}
