package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jordan77-lang/water-allocation/internal/engine"
)

func testTracker() *Tracker {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return NewTracker(start, Config{
		PollMs:         200,
		DecayMs:        250,
		SyncMs:         30000,
		Broker:         "tcp://broker:1883",
		HTTPAddr:       ":5000",
		Mode:           "weight",
		MaxPoints:      100,
		SoundThreshold: 5,
	})
}

func TestUpdateBuckets(t *testing.T) {
	tr := testTracker()
	tr.UpdateBuckets([]engine.Level{
		{Name: "food", Target: 0, Displayed: 12.5},
		{Name: "ai", Target: 3, Displayed: 3},
	}, map[string]int{"food": 2})

	snap := tr.Snapshot()
	if len(snap.Buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(snap.Buckets))
	}
	if snap.Buckets[0].Name != "food" || snap.Buckets[0].Displayed != 12.5 {
		t.Errorf("unexpected bucket 0: %+v", snap.Buckets[0])
	}
	if snap.Buckets[0].Events != 2 {
		t.Errorf("expected 2 food events, got %d", snap.Buckets[0].Events)
	}
	if snap.Buckets[1].Events != 0 {
		t.Errorf("expected 0 ai events, got %d", snap.Buckets[1].Events)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := testTracker()
	tr.UpdateChannels([]ChannelStatus{{Name: "food", Calibrated: true}})

	snap := tr.Snapshot()
	snap.Channels[0].Calibrated = false

	if !tr.Snapshot().Channels[0].Calibrated {
		t.Error("mutating a snapshot leaked into the tracker")
	}
}

func TestCountersAndFlags(t *testing.T) {
	tr := testTracker()

	tr.AddSample()
	tr.AddSample()
	tr.SetManual(true)
	tr.SetDecay(0.08, 0.4)
	tr.SetMQTTConnected(true)

	snap := tr.Snapshot()
	if snap.SampleCount != 2 {
		t.Errorf("expected 2 samples, got %d", snap.SampleCount)
	}
	if !snap.Manual {
		t.Error("expected manual latch set")
	}
	if snap.DecayRate != 0.08 || snap.MinStep != 0.4 {
		t.Errorf("unexpected decay tuning: %v/%v", snap.DecayRate, snap.MinStep)
	}
	if !snap.MQTTConnected {
		t.Error("expected mqtt connected")
	}
}

func TestFormatJSON(t *testing.T) {
	tr := testTracker()
	tr.UpdateBuckets([]engine.Level{{Name: "food", Displayed: 30}}, nil)
	tr.UpdateChannels([]ChannelStatus{{Name: "food", Calibrated: true, LastRaw: 9000, Fresh: true}})
	tr.SetDecay(0.05, 0.25)

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if sj.Status.Event != "" {
		t.Errorf("web status should carry no event, got %q", sj.Status.Event)
	}
	if len(sj.Status.Buckets) != 1 || sj.Status.Buckets[0].Displayed != 30 {
		t.Errorf("unexpected buckets: %+v", sj.Status.Buckets)
	}
	if len(sj.Status.Channels) != 1 || sj.Status.Channels[0].LastRaw != 9000 {
		t.Errorf("unexpected channels: %+v", sj.Status.Channels)
	}
	if sj.Status.Config.Mode != "weight" {
		t.Errorf("unexpected config: %+v", sj.Status.Config)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := testTracker()

	var sj StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM"), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "SIGTERM" {
		t.Errorf("unexpected event/reason: %q/%q", sj.Status.Event, sj.Status.Reason)
	}
}
