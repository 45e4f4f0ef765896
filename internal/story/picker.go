// Package story selects narrative lines and audio cues for bucket events.
// Selection is uniform with one twist: with more than one line available,
// the same line is never picked twice in a row for a bucket. Randomness is
// injected so tests can run deterministically.
package story

import "math/rand"

// Picker holds each bucket's narrative lines, sound variants, and the
// last-selected narrative index used for repeat suppression.
type Picker struct {
	rng    *rand.Rand
	lines  map[string][]string
	sounds map[string][]string
	last   map[string]int
}

// NewPicker creates an empty picker using the given random source.
func NewPicker(rng *rand.Rand) *Picker {
	return &Picker{
		rng:    rng,
		lines:  make(map[string][]string),
		sounds: make(map[string][]string),
		last:   make(map[string]int),
	}
}

// Add registers a bucket's narrative lines and sound variants.
func (p *Picker) Add(bucket string, lines, sounds []string) {
	p.lines[bucket] = append([]string(nil), lines...)
	p.sounds[bucket] = append([]string(nil), sounds...)
	p.last[bucket] = -1
}

// Narrative picks one line for the bucket, resampling until the pick
// differs from the previous one when more than one option exists. The
// lists are small (~4 entries) so the expected number of redraws is O(1).
func (p *Picker) Narrative(bucket string) string {
	lines := p.lines[bucket]
	if len(lines) == 0 {
		return ""
	}

	idx := p.rng.Intn(len(lines))
	if len(lines) > 1 {
		for idx == p.last[bucket] {
			idx = p.rng.Intn(len(lines))
		}
	}
	p.last[bucket] = idx
	return lines[idx]
}

// Sound picks one audio cue for the bucket, uniformly at random with no
// repeat suppression.
func (p *Picker) Sound(bucket string) string {
	sounds := p.sounds[bucket]
	if len(sounds) == 0 {
		return ""
	}
	return sounds[p.rng.Intn(len(sounds))]
}
