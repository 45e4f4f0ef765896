// Package acquire runs the fixed-interval sampling of all load-cell
// channels and assembles synchronized multi-channel samples.
package acquire

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/jordan77-lang/water-allocation/internal/scale"
)

// Sample is one synchronized multi-channel reading, in fixed bucket order.
// It is immutable once emitted.
type Sample struct {
	Time time.Time

	// Buckets names each position, in channel order.
	Buckets []string

	// Values holds the converted reading per channel. A channel that was
	// not ready this tick carries its last emitted value.
	Values []float64

	// Raw holds the raw counts matching Values.
	Raw []int32

	// Fresh marks which channels produced new data this tick.
	Fresh []bool
}

// Loop polls every channel once per tick. Ticks are skipped, not queued:
// if a tick fires while the previous one is still in flight it is a no-op,
// and there is no catch-up of missed ticks.
type Loop struct {
	channels []*scale.Channel
	blinker  scale.Blinker
	busy     atomic.Bool

	lastValues []float64
	lastRaw    []int32
}

// NewLoop creates a loop over the given channels. The blinker may be nil
// when no heartbeat indicator is wired.
func NewLoop(channels []*scale.Channel, blinker scale.Blinker) *Loop {
	return &Loop{
		channels:   channels,
		blinker:    blinker,
		lastValues: make([]float64, len(channels)),
		lastRaw:    make([]int32, len(channels)),
	}
}

// Tick polls all channels once and returns the assembled sample. The
// second return is false when the tick was skipped because a previous tick
// was still in flight. A channel read error skips that channel for the
// tick; it never aborts the sample.
func (l *Loop) Tick(now time.Time) (Sample, bool) {
	if !l.busy.CompareAndSwap(false, true) {
		return Sample{}, false
	}
	defer l.busy.Store(false)

	s := Sample{
		Time:    now,
		Buckets: make([]string, len(l.channels)),
		Values:  make([]float64, len(l.channels)),
		Raw:     make([]int32, len(l.channels)),
		Fresh:   make([]bool, len(l.channels)),
	}

	for i, ch := range l.channels {
		s.Buckets[i] = ch.Name()
		r, ok, err := ch.Poll()
		if err != nil {
			log.Printf("acquire: %v", err)
		} else if ok {
			l.lastValues[i] = r.Value
			l.lastRaw[i] = r.Raw
			s.Fresh[i] = true
		}
		s.Values[i] = l.lastValues[i]
		s.Raw[i] = l.lastRaw[i]
	}

	if l.blinker != nil {
		if err := l.blinker.Toggle(); err != nil {
			log.Printf("acquire: heartbeat: %v", err)
		}
	}

	return s, true
}
