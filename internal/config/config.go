// Package config loads the installation's YAML configuration: channel
// wiring and calibration, bucket narratives and sounds, decay tuning, and
// transport endpoints.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jordan77-lang/water-allocation/internal/engine"
	"github.com/jordan77-lang/water-allocation/internal/scale"
)

// Config represents the daemon configuration.
type Config struct {
	HTTPAddr  string        `yaml:"http_addr"`
	Broker    string        `yaml:"broker"`
	ConfigURL string        `yaml:"config_url"` // remote decay-rate override, empty disables
	Mode      string        `yaml:"mode"`       // "weight" or "drop"
	Poll      time.Duration `yaml:"poll_interval"`
	Sync      time.Duration `yaml:"sync_interval"`
	Heartbeat time.Duration `yaml:"heartbeat_interval"` // MQTT lifecycle heartbeat, 0 disables

	HeartbeatPin int `yaml:"heartbeat_pin"`

	Decay    DecayConfig     `yaml:"decay"`
	Drops    DropsConfig     `yaml:"drops"`
	Channels []ChannelConfig `yaml:"channels"`

	SoundThreshold float64 `yaml:"sound_threshold"`
}

// DecayConfig contains the convergence tuning.
type DecayConfig struct {
	Rate            float64       `yaml:"rate"`
	MinStep         float64       `yaml:"min_step"`
	MinStepFraction float64       `yaml:"min_step_fraction"`
	Interval        time.Duration `yaml:"interval"`
	MaxPoints       float64       `yaml:"max_points"`
}

// DropsConfig contains the bag-drop thresholds and increments used in
// "drop" mode. Thresholds are in converted units (grams), increments in
// water points.
type DropsConfig struct {
	LightThreshold float64 `yaml:"light_threshold"`
	HeavyThreshold float64 `yaml:"heavy_threshold"`
	LightIncrement float64 `yaml:"light_increment"`
	HeavyIncrement float64 `yaml:"heavy_increment"`
}

// ChannelConfig wires one bucket to one load-cell channel.
type ChannelConfig struct {
	Bucket            string   `yaml:"bucket"`
	DataPin           int      `yaml:"data_pin"`
	ClockPin          int      `yaml:"clock_pin"`
	CalibrationFactor float64  `yaml:"calibration_factor"` // counts per unit, sign flips polarity
	TareOffset        int32    `yaml:"tare_offset"`        // 0 captures a live tare at boot
	Narratives        []string `yaml:"narratives"`
	Sounds            []string `yaml:"sounds"`
}

// Default returns the configuration of the four-bucket gallery rig.
func Default() *Config {
	cfg := &Config{
		HTTPAddr:     ":5000",
		Broker:       "tcp://192.168.1.200:1883",
		ConfigURL:    "",
		Mode:         "weight",
		Poll:         200 * time.Millisecond,
		Sync:         30 * time.Second,
		Heartbeat:    15 * time.Minute,
		HeartbeatPin: scale.DefaultHeartbeatPin,
		Decay: DecayConfig{
			Rate:            0.05,
			MinStep:         0.25,
			MinStepFraction: 0.05,
			Interval:        250 * time.Millisecond,
			MaxPoints:       100,
		},
		Drops: DropsConfig{
			LightThreshold: 300,
			HeavyThreshold: 900,
			LightIncrement: 10,
			HeavyIncrement: 25,
		},
		SoundThreshold: 5,
	}

	buckets := []string{"food", "ai", "crops", "animals"}
	for i, name := range buckets {
		cfg.Channels = append(cfg.Channels, ChannelConfig{
			Bucket:            name,
			DataPin:           scale.DefaultPins[i].Data,
			ClockPin:          scale.DefaultPins[i].Clock,
			CalibrationFactor: 420.0,
			TareOffset:        0,
			Narratives: []string{
				fmt.Sprintf("The %s allocation swells.", name),
				fmt.Sprintf("Water pours toward %s.", name),
				fmt.Sprintf("Someone chose %s.", name),
				fmt.Sprintf("The %s reservoir rises.", name),
			},
			Sounds: []string{
				"sounds/splash_1.mp3",
				"sounds/splash_2.mp3",
				"sounds/splash_3.mp3",
			},
		})
	}
	return cfg
}

// Load reads the YAML file at path, merged over defaults. A missing file
// is not an error: the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot safely run with.
func (c *Config) Validate() error {
	if c.Mode != "weight" && c.Mode != "drop" {
		return fmt.Errorf("mode %q must be \"weight\" or \"drop\"", c.Mode)
	}
	if c.Poll <= 0 {
		return fmt.Errorf("poll_interval %v is not positive", c.Poll)
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("no channels configured")
	}
	for _, ch := range c.Channels {
		if ch.Bucket == "" {
			return fmt.Errorf("channel with empty bucket name")
		}
		if ch.CalibrationFactor == 0 || math.IsNaN(ch.CalibrationFactor) {
			return fmt.Errorf("channel %s: calibration factor must be non-zero", ch.Bucket)
		}
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("decay: %w", err)
	}
	if c.SoundThreshold < 0 || math.IsNaN(c.SoundThreshold) {
		return fmt.Errorf("sound_threshold %v is negative", c.SoundThreshold)
	}
	return nil
}

// EngineConfig converts the decay section to the engine's config type.
func (c *Config) EngineConfig() engine.DecayConfig {
	return engine.DecayConfig{
		Rate:            c.Decay.Rate,
		MinStep:         c.Decay.MinStep,
		MinStepFraction: c.Decay.MinStepFraction,
		Interval:        c.Decay.Interval,
		MaxPoints:       c.Decay.MaxPoints,
	}
}

// Buckets returns the bucket names in channel order.
func (c *Config) Buckets() []string {
	names := make([]string, len(c.Channels))
	for i, ch := range c.Channels {
		names[i] = ch.Bucket
	}
	return names
}

// Pins returns the GPIO pin pairs in channel order.
func (c *Config) Pins() []scale.PinPair {
	pins := make([]scale.PinPair, len(c.Channels))
	for i, ch := range c.Channels {
		pins[i] = scale.PinPair{Data: ch.DataPin, Clock: ch.ClockPin}
	}
	return pins
}
