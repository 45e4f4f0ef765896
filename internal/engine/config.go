package engine

import (
	"fmt"
	"math"
	"time"
)

// DecayConfig holds the process-wide decay tuning. It is owned by the
// Engine and mutated only through Retune, never read as an ambient global
// by other components.
type DecayConfig struct {
	// Rate is the fraction of the displayed-to-target gap removed per
	// tick, in [0, 1].
	Rate float64

	// MinStep is the floor on the per-tick step. A small Rate with a
	// large MinStep produces visibly steppy decay; that is a tunability
	// tradeoff exposed to operators, not something to smooth over.
	MinStep float64

	// MinStepFraction is used by Retune to recompute MinStep as a
	// fraction of Rate*MaxPoints.
	MinStepFraction float64

	// Interval is the spacing of decay ticks.
	Interval time.Duration

	// MaxPoints caps every bucket's target and displayed value.
	MaxPoints float64
}

// DefaultDecayConfig returns the tuning used by the gallery installation.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		Rate:            0.05,
		MinStep:         0.25,
		MinStepFraction: 0.05,
		Interval:        250 * time.Millisecond,
		MaxPoints:       100,
	}
}

// Validate rejects configurations that would break convergence.
func (c DecayConfig) Validate() error {
	if math.IsNaN(c.Rate) || c.Rate < 0 || c.Rate > 1 {
		return fmt.Errorf("decay rate %v outside [0,1]", c.Rate)
	}
	if math.IsNaN(c.MinStep) || c.MinStep < 0 {
		return fmt.Errorf("min step %v is negative", c.MinStep)
	}
	if math.IsNaN(c.MinStepFraction) || c.MinStepFraction < 0 {
		return fmt.Errorf("min step fraction %v is negative", c.MinStepFraction)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("decay interval %v is not positive", c.Interval)
	}
	if math.IsNaN(c.MaxPoints) || c.MaxPoints <= 0 {
		return fmt.Errorf("max points %v is not positive", c.MaxPoints)
	}
	return nil
}
