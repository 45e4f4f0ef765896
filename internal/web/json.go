package web

import (
	"encoding/json"
	"math"

	"github.com/jordan77-lang/water-allocation/internal/status"
)

// formatData builds the /data payload: displayed water points per bucket,
// rounded to two decimals the way the original relay reported them.
func formatData(snap status.Snapshot) []byte {
	points := make(map[string]float64, len(snap.Buckets))
	for _, b := range snap.Buckets {
		points[b.Name] = round2(b.Displayed)
	}
	data, _ := json.Marshal(points)
	return data
}

// DebugPayload is the /debug/raw response for operator troubleshooting.
type DebugPayload struct {
	Raw            map[string]int32     `json:"raw"`
	WaterPoints    map[string]float64   `json:"water_points"`
	Channels       []status.ChannelJSON `json:"channels"`
	Manual         bool                 `json:"manual"`
	DecayRate      float64              `json:"decay_rate"`
	SoundThreshold float64              `json:"sound_threshold"`
}

func formatDebugRaw(snap status.Snapshot) []byte {
	p := DebugPayload{
		Raw:            make(map[string]int32, len(snap.Channels)),
		WaterPoints:    make(map[string]float64, len(snap.Buckets)),
		Manual:         snap.Manual,
		DecayRate:      snap.DecayRate,
		SoundThreshold: snap.Config.SoundThreshold,
	}
	for _, c := range snap.Channels {
		p.Raw[c.Name] = c.LastRaw
		p.Channels = append(p.Channels, status.ChannelJSON{
			Name:       c.Name,
			Calibrated: c.Calibrated,
			LastRaw:    c.LastRaw,
			Fresh:      c.Fresh,
		})
	}
	for _, b := range snap.Buckets {
		p.WaterPoints[b.Name] = b.Displayed
	}
	data, _ := json.Marshal(p)
	return data
}

// formatConfig builds the /config payload consumed by remote displays (and
// by other daemons' config sync).
func formatConfig(snap status.Snapshot) []byte {
	data, _ := json.Marshal(map[string]float64{"decay_per_sec": snap.DecayRate})
	return data
}

// liveMessage is the envelope for websocket pushes.
type liveMessage struct {
	Type    string          `json:"type"`
	Buckets []liveBucket    `json:"buckets,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
}

type liveBucket struct {
	Name      string  `json:"name"`
	Target    float64 `json:"target"`
	Displayed float64 `json:"displayed"`
}

func levelsMessage(snap status.Snapshot) []byte {
	msg := liveMessage{Type: "levels"}
	for _, b := range snap.Buckets {
		msg.Buckets = append(msg.Buckets, liveBucket{
			Name:      b.Name,
			Target:    round2(b.Target),
			Displayed: round2(b.Displayed),
		})
	}
	data, _ := json.Marshal(msg)
	return data
}

// eventMessage wraps a pre-formatted event payload (the same JSON that
// goes to MQTT) in the live envelope.
func eventMessage(payload []byte) []byte {
	data, _ := json.Marshal(liveMessage{Type: "event", Event: payload})
	return data
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
