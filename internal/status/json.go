package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Buckets       []BucketJSON  `json:"buckets"`
	Channels      []ChannelJSON `json:"channels"`
	Samples       int64         `json:"samples"`
	Manual        bool          `json:"manual"`
	DecayRate     float64       `json:"decay_rate"`
	MinStep       float64       `json:"min_step"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Config        ConfigJSON    `json:"config"`
}

// BucketJSON is the JSON representation of one bucket.
type BucketJSON struct {
	Name      string  `json:"name"`
	Target    float64 `json:"target"`
	Displayed float64 `json:"displayed"`
	Events    int     `json:"events"`
}

// ChannelJSON is the JSON representation of one channel's health.
type ChannelJSON struct {
	Name       string `json:"name"`
	Calibrated bool   `json:"calibrated"`
	LastRaw    int32  `json:"last_raw"`
	Fresh      bool   `json:"fresh"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs         int64   `json:"poll_ms"`
	DecayMs        int64   `json:"decay_ms"`
	SyncMs         int64   `json:"sync_ms"`
	HeartbeatMs    int64   `json:"heartbeat_ms"`
	Broker         string  `json:"broker"`
	HTTPAddr       string  `json:"http_addr"`
	ConfigURL      string  `json:"config_url,omitempty"`
	Mode           string  `json:"mode"`
	MaxPoints      float64 `json:"max_points"`
	SoundThreshold float64 `json:"sound_threshold"`
}

func buildInner(snap Snapshot) StatusInner {
	buckets := make([]BucketJSON, len(snap.Buckets))
	for i, b := range snap.Buckets {
		buckets[i] = BucketJSON{
			Name:      b.Name,
			Target:    b.Target,
			Displayed: b.Displayed,
			Events:    b.Events,
		}
	}

	channels := make([]ChannelJSON, len(snap.Channels))
	for i, c := range snap.Channels {
		channels[i] = ChannelJSON{
			Name:       c.Name,
			Calibrated: c.Calibrated,
			LastRaw:    c.LastRaw,
			Fresh:      c.Fresh,
		}
	}

	return StatusInner{
		Buckets:       buckets,
		Channels:      channels,
		Samples:       snap.SampleCount,
		Manual:        snap.Manual,
		DecayRate:     snap.DecayRate,
		MinStep:       snap.MinStep,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:         snap.Config.PollMs,
			DecayMs:        snap.Config.DecayMs,
			SyncMs:         snap.Config.SyncMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
			ConfigURL:      snap.Config.ConfigURL,
			Mode:           snap.Config.Mode,
			MaxPoints:      snap.Config.MaxPoints,
			SoundThreshold: snap.Config.SoundThreshold,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
