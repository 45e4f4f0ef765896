// Package status provides a thread-safe status tracker for the
// water-allocation daemon. It is read by HTTP handlers and the websocket
// feed while the main loop writes to it.
package status

import (
	"sync"
	"time"

	"github.com/jordan77-lang/water-allocation/internal/engine"
)

// ChannelStatus is the health view of one load-cell channel.
type ChannelStatus struct {
	Name       string
	Calibrated bool
	LastRaw    int32
	Fresh      bool // produced data on the most recent tick
}

// BucketStatus is the presentation view of one bucket.
type BucketStatus struct {
	Name      string
	Target    float64
	Displayed float64
	Events    int
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs         int64
	DecayMs        int64
	SyncMs         int64
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
	ConfigURL      string
	Mode           string
	MaxPoints      float64
	SoundThreshold float64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Buckets       []BucketStatus
	Channels      []ChannelStatus
	SampleCount   int64
	Manual        bool
	DecayRate     float64
	MinStep       float64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// UpdateBuckets sets the bucket levels and per-bucket event counts.
// Called from the main loop on every acquisition and decay tick.
func (t *Tracker) UpdateBuckets(levels []engine.Level, counts map[string]int) {
	t.mu.Lock()
	buckets := make([]BucketStatus, len(levels))
	for i, lv := range levels {
		buckets[i] = BucketStatus{
			Name:      lv.Name,
			Target:    lv.Target,
			Displayed: lv.Displayed,
			Events:    counts[lv.Name],
		}
	}
	t.snap.Buckets = buckets
	t.mu.Unlock()
}

// UpdateChannels sets the per-channel health view.
func (t *Tracker) UpdateChannels(channels []ChannelStatus) {
	t.mu.Lock()
	t.snap.Channels = channels
	t.mu.Unlock()
}

// AddSample bumps the emitted-sample counter.
func (t *Tracker) AddSample() {
	t.mu.Lock()
	t.snap.SampleCount++
	t.mu.Unlock()
}

// SetManual records the manual latch state.
func (t *Tracker) SetManual(on bool) {
	t.mu.Lock()
	t.snap.Manual = on
	t.mu.Unlock()
}

// SetDecay records the live decay tuning (mutated by config sync).
func (t *Tracker) SetDecay(rate, minStep float64) {
	t.mu.Lock()
	t.snap.DecayRate = rate
	t.snap.MinStep = minStep
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Buckets = append([]BucketStatus(nil), t.snap.Buckets...)
	s.Channels = append([]ChannelStatus(nil), t.snap.Channels...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
