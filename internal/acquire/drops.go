package acquire

// DropScorer converts rising weight deltas into water-point increments.
// A jump of at least the light threshold reads as a light bag landing on
// the platform, at least the heavy threshold as a heavy bag. The thresholds
// are in the channels' converted units (grams on the calibrated rig).
type DropScorer struct {
	LightThreshold float64
	HeavyThreshold float64
	LightIncrement float64
	HeavyIncrement float64

	last []float64
}

// NewDropScorer creates a scorer for the given channel count.
func NewDropScorer(channels int, lightThresh, heavyThresh, lightInc, heavyInc float64) *DropScorer {
	return &DropScorer{
		LightThreshold: lightThresh,
		HeavyThreshold: heavyThresh,
		LightIncrement: lightInc,
		HeavyIncrement: heavyInc,
		last:           make([]float64, channels),
	}
}

// Score compares the sample against the previous one and returns the
// water-point increment per channel, zero where no bag landed. Channels
// without fresh data keep their previous baseline so a stale value cannot
// fake a drop when the channel wakes back up.
func (s *DropScorer) Score(sample Sample) []float64 {
	incs := make([]float64, len(sample.Values))
	for i, v := range sample.Values {
		if i >= len(s.last) || !sample.Fresh[i] {
			continue
		}
		delta := v - s.last[i]
		switch {
		case delta >= s.HeavyThreshold:
			incs[i] = s.HeavyIncrement
		case delta >= s.LightThreshold:
			incs[i] = s.LightIncrement
		}
		s.last[i] = v
	}
	return incs
}
