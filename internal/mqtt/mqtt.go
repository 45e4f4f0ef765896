// Package mqtt publishes samples and story events with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/jordan77-lang/water-allocation/internal/acquire"
	"github.com/jordan77-lang/water-allocation/internal/engine"
)

// TopicSamples is the MQTT topic for multi-channel samples.
const TopicSamples = "installation/water/samples"

// TopicEvents is the MQTT topic for bucket story events.
const TopicEvents = "installation/water/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "installation/water/system"

// Publisher publishes installation traffic to MQTT.
type Publisher interface {
	// PublishSample sends one multi-channel sample to the broker.
	// Samples are loss-tolerant: the next tick's sample supersedes a
	// dropped one, so failures must not crash the process.
	PublishSample(sample acquire.Sample) error

	// PublishEvent sends a bucket story event to the broker.
	PublishEvent(event engine.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SamplePayload is the MQTT message payload for one sample.
type SamplePayload struct {
	Sample SampleInner `json:"sample"`
}

// SampleInner contains the sample details. Readings follow bucket order.
type SampleInner struct {
	Timestamp string    `json:"timestamp"`
	Buckets   []string  `json:"buckets"`
	Readings  []float64 `json:"readings"`
	Fresh     []bool    `json:"fresh"`
}

// FormatSamplePayload creates the JSON payload for a sample.
func FormatSamplePayload(sample acquire.Sample) ([]byte, error) {
	payload := SamplePayload{
		Sample: SampleInner{
			Timestamp: sample.Time.UTC().Format(time.RFC3339),
			Buckets:   sample.Buckets,
			Readings:  sample.Values,
			Fresh:     sample.Fresh,
		},
	}
	return json.Marshal(payload)
}

// EventPayload is the MQTT message payload for one story event.
type EventPayload struct {
	Event EventInner `json:"event"`
}

// EventInner contains the story event details.
type EventInner struct {
	Timestamp string  `json:"timestamp"`
	Bucket    string  `json:"bucket"`
	Delta     float64 `json:"delta"`
	Narrative string  `json:"narrative"`
	Sound     string  `json:"sound"`
	HoldMs    int64   `json:"hold_ms"`
}

// FormatEventPayload creates the JSON payload for a story event.
func FormatEventPayload(event engine.Event) ([]byte, error) {
	payload := EventPayload{
		Event: EventInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Bucket:    event.Bucket,
			Delta:     event.Delta,
			Narrative: event.Narrative,
			Sound:     event.Sound,
			HoldMs:    event.Hold.Milliseconds(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
