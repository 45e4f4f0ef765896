package engine

import (
	"time"

	"github.com/jordan77-lang/water-allocation/internal/story"
)

// PanelHold is how long the presentation layer keeps a narrative panel
// visible after an event. A new event while the panel is up resets this
// timer rather than stacking a second one.
const PanelHold = 6 * time.Second

// Event is a threshold-crossing notification. Events never mutate bucket
// state; they only tell the presentation layer what to show and play.
type Event struct {
	Timestamp time.Time
	Bucket    string
	Delta     float64
	Narrative string
	Sound     string
	Hold      time.Duration
}

// Detector turns target changes into bucket events. A change fires when
// its delta is at or above the threshold; a delta one unit below stays
// silent.
type Detector struct {
	threshold float64
	picker    *story.Picker
	counts    map[string]int
}

// NewDetector creates a detector with the given firing threshold.
func NewDetector(threshold float64, picker *story.Picker) *Detector {
	return &Detector{
		threshold: threshold,
		picker:    picker,
		counts:    make(map[string]int),
	}
}

// Process inspects one target change and returns the event to emit, or nil
// when the delta is below the threshold.
func (d *Detector) Process(c Change, now time.Time) *Event {
	if c.Delta < d.threshold {
		return nil
	}
	d.counts[c.Bucket]++
	return &Event{
		Timestamp: now,
		Bucket:    c.Bucket,
		Delta:     c.Delta,
		Narrative: d.picker.Narrative(c.Bucket),
		Sound:     d.picker.Sound(c.Bucket),
		Hold:      PanelHold,
	}
}

// Counts returns a copy of the per-bucket event counts since startup.
func (d *Detector) Counts() map[string]int {
	out := make(map[string]int, len(d.counts))
	for k, v := range d.counts {
		out[k] = v
	}
	return out
}
