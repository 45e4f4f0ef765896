// Command waterwall reads four load-cell channels and serves decaying
// water allocations to the installation's display layer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jordan77-lang/water-allocation/internal/acquire"
	"github.com/jordan77-lang/water-allocation/internal/config"
	"github.com/jordan77-lang/water-allocation/internal/engine"
	"github.com/jordan77-lang/water-allocation/internal/mqtt"
	"github.com/jordan77-lang/water-allocation/internal/remote"
	"github.com/jordan77-lang/water-allocation/internal/scale"
	"github.com/jordan77-lang/water-allocation/internal/status"
	"github.com/jordan77-lang/water-allocation/internal/story"
	"github.com/jordan77-lang/water-allocation/internal/web"
)

func main() {
	configPath := flag.String("config", "waterwall.yaml", "YAML configuration file")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", "HTTP relay address (overrides config)")
	mock := flag.Bool("mock", false, "Run with synthetic drivers instead of GPIO hardware")
	printState := flag.Bool("print-state", false, "Read all channels once, print values, and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if *broker != "" {
		cfg.Broker = *broker
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	if err := run(cfg, *mock, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, mock, printState bool) error {
	// Initialize hardware
	drivers, blinker, closeRig, err := openDrivers(cfg, mock)
	if err != nil {
		return fmt.Errorf("init scale rig: %w", err)
	}
	defer closeRig()

	channels, err := buildChannels(cfg, drivers)
	if err != nil {
		return err
	}

	// Print state mode
	if printState {
		for _, ch := range channels {
			r, ok, err := ch.Poll()
			if err != nil {
				return fmt.Errorf("read channel %s: %w", ch.Name(), err)
			}
			if !ok {
				fmt.Printf("%s: not ready\n", ch.Name())
				continue
			}
			fmt.Printf("%s: %.2f (raw %d)\n", ch.Name(), r.Value, r.Raw)
		}
		return nil
	}

	eng, err := engine.New(cfg.Buckets(), cfg.EngineConfig())
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	picker := story.NewPicker(rand.New(rand.NewSource(time.Now().UnixNano())))
	for _, ch := range cfg.Channels {
		picker.Add(ch.Bucket, ch.Narratives, ch.Sounds)
	}
	detector := engine.NewDetector(cfg.SoundThreshold, picker)

	var scorer *acquire.DropScorer
	if cfg.Mode == "drop" {
		scorer = acquire.NewDropScorer(len(channels),
			cfg.Drops.LightThreshold, cfg.Drops.HeavyThreshold,
			cfg.Drops.LightIncrement, cfg.Drops.HeavyIncrement)
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.Broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:         cfg.Poll.Milliseconds(),
		DecayMs:        cfg.Decay.Interval.Milliseconds(),
		SyncMs:         cfg.Sync.Milliseconds(),
		HeartbeatMs:    cfg.Heartbeat.Milliseconds(),
		Broker:         cfg.Broker,
		HTTPAddr:       cfg.HTTPAddr,
		ConfigURL:      cfg.ConfigURL,
		Mode:           cfg.Mode,
		MaxPoints:      cfg.Decay.MaxPoints,
		SoundThreshold: cfg.SoundThreshold,
	})
	tracker.SetDecay(eng.Config().Rate, eng.Config().MinStep)

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP relay server
	commands := make(chan web.Command, 16)
	var srv *web.Server
	if cfg.HTTPAddr != "" {
		srv = web.New(cfg.HTTPAddr, tracker, commands)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http relay listening on %s", cfg.HTTPAddr)
	}

	var fetcher *remote.Fetcher
	if cfg.ConfigURL != "" {
		fetcher = remote.NewFetcher(cfg.ConfigURL, nil)
	}

	log.Printf("started: poll=%v decay=%v sync=%v mode=%s broker=%s",
		cfg.Poll, cfg.Decay.Interval, cfg.Sync, cfg.Mode, cfg.Broker)

	acqTicker := time.NewTicker(cfg.Poll)
	defer acqTicker.Stop()
	decayTicker := time.NewTicker(cfg.Decay.Interval)
	defer decayTicker.Stop()

	var syncTick <-chan time.Time
	if fetcher != nil && cfg.Sync > 0 {
		syncTicker := time.NewTicker(cfg.Sync)
		defer syncTicker.Stop()
		syncTick = syncTicker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := loopDeps{
		loop:       acquire.NewLoop(channels, blinker),
		channels:   channels,
		eng:        eng,
		detector:   detector,
		scorer:     scorer,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		srv:        srv,
		fetcher:    fetcher,
		heartbeat:  cfg.Heartbeat,
	}
	return runLoop(d, time.Now, acqTicker.C, decayTicker.C, syncTick, commands, sigCh)
}

// openDrivers returns the per-channel drivers and heartbeat blinker, real
// or synthetic.
func openDrivers(cfg *config.Config, mock bool) ([]scale.Driver, scale.Blinker, func() error, error) {
	if mock {
		drivers := make([]scale.Driver, len(cfg.Channels))
		for i := range cfg.Channels {
			// A quiet rig: always ready, steady counts, zero weight
			// after the live tare.
			drivers[i] = scale.NewFakeDriver([]scale.FakeSample{{Ready: true, Raw: 80000}})
		}
		return drivers, &scale.FakeBlinker{}, func() error { return nil }, nil
	}

	rig, err := scale.OpenRig(cfg.Pins(), cfg.HeartbeatPin)
	if err != nil {
		return nil, nil, nil, err
	}
	return rig.Drivers, rig.Heartbeat, rig.Close, nil
}

// buildChannels constructs and tares every configured channel. A tare
// timeout degrades the channel but never aborts startup.
func buildChannels(cfg *config.Config, drivers []scale.Driver) ([]*scale.Channel, error) {
	channels := make([]*scale.Channel, 0, len(cfg.Channels))
	for i, cc := range cfg.Channels {
		ch, err := scale.NewChannel(cc.Bucket, drivers[i], cc.CalibrationFactor, cc.TareOffset)
		if err != nil {
			return nil, fmt.Errorf("init channel: %w", err)
		}
		if err := ch.Initialize(scale.DefaultTareTimeout); err != nil {
			if errors.Is(err, scale.ErrTareTimeout) {
				log.Printf("warning: %v", err)
			} else {
				log.Printf("channel %s init error: %v", cc.Bucket, err)
			}
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// loopDeps carries everything runLoop needs, so tests can wire fakes.
type loopDeps struct {
	loop       *acquire.Loop
	channels   []*scale.Channel
	eng        *engine.Engine
	detector   *engine.Detector
	scorer     *acquire.DropScorer // nil in weight mode
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // may be nil
	tracker    *status.Tracker
	srv        *web.Server     // may be nil
	fetcher    *remote.Fetcher // nil disables config sync
	heartbeat  time.Duration
}

// fetchResult carries one config-sync outcome back to the loop.
type fetchResult struct {
	rate float64
	err  error
}

func runLoop(d loopDeps, now func() time.Time, acqTick, decayTick, syncTick <-chan time.Time, commands <-chan web.Command, sig <-chan os.Signal) error {
	lastHeartbeat := now()
	rateCh := make(chan fetchResult, 1)
	syncInFlight := false

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				if d.mqttStatus != nil {
					d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
				}
				snap := d.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-acqTick:
			t := now()
			sample, ok := d.loop.Tick(t)
			if !ok {
				// Previous tick still in flight: skip, no catch-up.
				continue
			}

			d.tracker.AddSample()
			d.tracker.UpdateChannels(channelStatuses(d.channels, sample))

			if err := d.publisher.PublishSample(sample); err != nil {
				log.Printf("sample publish error: %v", err)
				// Loss-tolerant: the next tick supersedes it
			}

			// Rise-before-decay: the sample is applied here, in the
			// same loop that ticks decay, so a decay tick can never
			// interleave mid-update.
			if !d.eng.Manual() {
				d.ingest(sample, t)
			}

			d.updatePresentation()
			d.checkHeartbeat(t, &lastHeartbeat)

		case <-decayTick:
			d.eng.Tick()
			d.updatePresentation()

		case <-syncTick:
			if d.fetcher == nil || syncInFlight {
				continue
			}
			syncInFlight = true
			// Fetch on its own goroutine: a slow endpoint must never
			// stall the decay or event pipeline.
			go func() {
				rate, err := d.fetcher.Fetch(context.Background())
				rateCh <- fetchResult{rate: rate, err: err}
			}()

		case res := <-rateCh:
			syncInFlight = false
			if res.err != nil {
				log.Printf("config sync: %v (keeping rate %v)", res.err, d.eng.Config().Rate)
				continue
			}
			if d.eng.Retune(res.rate) {
				cfg := d.eng.Config()
				d.tracker.SetDecay(cfg.Rate, cfg.MinStep)
				log.Printf("config sync: decay rate now %v (min step %v)", cfg.Rate, cfg.MinStep)
			}

		case cmd := <-commands:
			t := now()
			switch cmd.Kind {
			case web.CommandPour:
				change, ok := d.eng.Pour(cmd.Bucket, cmd.Points)
				if !ok {
					log.Printf("pour: unknown bucket %q", cmd.Bucket)
					continue
				}
				log.Printf("pour: %s +%.1f points", cmd.Bucket, change.Delta)
				d.fireEvent(change, t)
				d.updatePresentation()
			case web.CommandManual:
				d.eng.SetManual(cmd.Manual)
				d.tracker.SetManual(cmd.Manual)
				log.Printf("manual mode: %v", cmd.Manual)
			}
		}
	}
}

// ingest applies one sample to the engine, firing story events for
// threshold-crossing rises.
func (d loopDeps) ingest(sample acquire.Sample, t time.Time) {
	if d.scorer != nil {
		// Drop mode: rising weight deltas score bag drops which pour
		// in and drain back out.
		incs := d.scorer.Score(sample)
		for i, inc := range incs {
			if inc <= 0 {
				continue
			}
			if change, ok := d.eng.Pour(sample.Buckets[i], inc); ok {
				log.Printf("drop: %s +%.1f points", sample.Buckets[i], inc)
				d.fireEvent(change, t)
			}
		}
		return
	}

	// Weight mode: the observed value is both the instant bump and the
	// decay target.
	for i, bucket := range sample.Buckets {
		if change, ok := d.eng.SetTarget(bucket, sample.Values[i]); ok {
			d.fireEvent(change, t)
		}
	}
}

// fireEvent runs the detector over one change and publishes the resulting
// event, if any, to MQTT and the websocket feed.
func (d loopDeps) fireEvent(change engine.Change, t time.Time) {
	ev := d.detector.Process(change, t)
	if ev == nil {
		return
	}

	log.Printf("event: %s +%.1f %q (%s)", ev.Bucket, ev.Delta, ev.Narrative, ev.Sound)
	if err := d.publisher.PublishEvent(*ev); err != nil {
		log.Printf("event publish error: %v", err)
		// Don't crash on publish failure
	}
	if d.srv != nil {
		if payload, err := mqtt.FormatEventPayload(*ev); err == nil {
			d.srv.PushEvent(payload)
		}
	}
}

// updatePresentation refreshes the tracker and websocket clients with the
// current bucket levels.
func (d loopDeps) updatePresentation() {
	d.tracker.UpdateBuckets(d.eng.Levels(), d.detector.Counts())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	if d.srv != nil {
		d.srv.PushLevels(d.tracker.Snapshot())
	}
}

// checkHeartbeat publishes the periodic MQTT lifecycle heartbeat.
func (d loopDeps) checkHeartbeat(t time.Time, last *time.Time) {
	if d.heartbeat <= 0 || t.Sub(*last) < d.heartbeat {
		return
	}
	*last = t

	snap := d.tracker.Snapshot()
	log.Printf("heartbeat: uptime=%v samples=%d", snap.Uptime().Truncate(time.Second), snap.SampleCount)
	hb := mqtt.SystemEvent{
		Timestamp:  t,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
	}
	if err := d.publisher.PublishSystem(hb); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

// channelStatuses builds the tracker's channel health view from the
// channels and the tick's freshness flags.
func channelStatuses(channels []*scale.Channel, sample acquire.Sample) []status.ChannelStatus {
	out := make([]status.ChannelStatus, len(channels))
	for i, ch := range channels {
		out[i] = status.ChannelStatus{
			Name:       ch.Name(),
			Calibrated: ch.Calibrated(),
			LastRaw:    ch.LastRaw(),
			Fresh:      sample.Fresh[i],
		}
	}
	return out
}
