package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pithecene-io/crossflow/replay"
	"github.com/pithecene-io/crossflow/types"
)

// Config represents a crossflow.yaml configuration file.
// All values are optional and act as defaults for crossflow flags.
// CLI flags always override config values.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Replay   ReplayConfig   `yaml:"replay"`
	Scenario ScenarioConfig `yaml:"scenario"`
	Adapter  AdapterConfig  `yaml:"adapter"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Stream   StreamConfig   `yaml:"stream"`
}

// ServiceConfig locates the simulation service.
type ServiceConfig struct {
	URL     string            `yaml:"url"`
	Timeout Duration          `yaml:"timeout"`
	Mode    string            `yaml:"mode"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// ReplayConfig holds the replay cadence.
type ReplayConfig struct {
	Interval  Duration `yaml:"interval"`
	BatchSize int      `yaml:"batch_size"`
}

// ScenarioConfig is the simulation scenario. Approach maps are keyed by
// approach name, case-insensitively ("north", "North").
type ScenarioConfig struct {
	TotalCycles    int                    `yaml:"total_cycles"`
	AvgServiceTime float64                `yaml:"avg_service_time"`
	Arrivals       map[string]types.Range `yaml:"arrivals"`
	Lanes          types.Lanes            `yaml:"lanes"`
	FixedTimes     map[string]int         `yaml:"fixed_times"`
	EVPercent      map[string]float64     `yaml:"ev_percent"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// ArchiveConfig holds run archive defaults from the config file.
// An empty backend disables archiving.
type ArchiveConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Dataset     string `yaml:"dataset"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// StreamConfig holds the websocket feed listen address.
// An empty address disables the feed.
type StreamConfig struct {
	Listen string `yaml:"listen"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Default returns the stock configuration.
func Default() *Config {
	sim := types.DefaultSimConfig()
	return &Config{
		Service: ServiceConfig{
			Timeout: Duration{15 * time.Second},
			Mode:    string(sim.Mode),
		},
		Replay: ReplayConfig{
			Interval:  Duration{replay.DefaultInterval},
			BatchSize: replay.DefaultBatchSize,
		},
		Scenario: ScenarioConfig{
			TotalCycles:    sim.TotalCycles,
			AvgServiceTime: sim.AvgServiceTime,
			Arrivals:       keyed(sim.Arrivals),
			Lanes:          sim.Lanes,
			FixedTimes:     keyed(sim.FixedTimes),
			EVPercent:      keyed(sim.EVPercent),
		},
	}
}

func keyed[V any](m map[types.Approach]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[strings.ToLower(string(k))] = v
	}
	return out
}

// ParseApproach resolves an approach name case-insensitively.
func ParseApproach(name string) (types.Approach, error) {
	for _, a := range types.Approaches {
		if strings.EqualFold(name, string(a)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown approach %q (must be north, south, east or west)", name)
}

// byApproach resolves map keys to approaches. File values are merged over
// the lowercase default keys, so a key spelled "North" overrides "north".
func byApproach[V any](m map[string]V) (map[types.Approach]V, error) {
	out := make(map[types.Approach]V, len(m))
	for _, lower := range []bool{true, false} {
		for name, v := range m {
			if (name == strings.ToLower(name)) != lower {
				continue
			}
			a, err := ParseApproach(name)
			if err != nil {
				return nil, err
			}
			out[a] = v
		}
	}
	return out, nil
}

// ToSimConfig converts the scenario and service mode into a SimConfig.
// The result is not validated; call Validate first or SimConfig.Validate.
func (c *Config) ToSimConfig() (*types.SimConfig, error) {
	arrivals, err := byApproach(c.Scenario.Arrivals)
	if err != nil {
		return nil, fmt.Errorf("scenario.arrivals: %w", err)
	}
	fixed, err := byApproach(c.Scenario.FixedTimes)
	if err != nil {
		return nil, fmt.Errorf("scenario.fixed_times: %w", err)
	}
	ev, err := byApproach(c.Scenario.EVPercent)
	if err != nil {
		return nil, fmt.Errorf("scenario.ev_percent: %w", err)
	}
	return &types.SimConfig{
		TotalCycles:    c.Scenario.TotalCycles,
		AvgServiceTime: c.Scenario.AvgServiceTime,
		Arrivals:       arrivals,
		Lanes:          c.Scenario.Lanes,
		FixedTimes:     fixed,
		EVPercent:      ev,
		Mode:           types.PayloadMode(c.Service.Mode),
	}, nil
}

// ReplayCadence converts the replay section into a scheduler config.
func (c *Config) ReplayCadence() replay.Config {
	return replay.Config{Interval: c.Replay.Interval.Duration, BatchSize: c.Replay.BatchSize}
}

// Validate checks every section and joins the problems found.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.Timeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("service.timeout must be > 0, got %s", c.Service.Timeout))
	}
	if err := c.ReplayCadence().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("replay: %w", err))
	}

	sim, err := c.ToSimConfig()
	if err != nil {
		errs = append(errs, err)
	} else if err := sim.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scenario: %w", err))
	}

	switch c.Adapter.Type {
	case "":
	case "webhook", "redis":
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for %s adapter", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}

	switch c.Archive.Backend {
	case "", "fs", "memory":
	case "s3":
		if c.Archive.Path == "" {
			errs = append(errs, errors.New("archive.path is required for s3 backend (bucket/prefix)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive backend %q (must be fs, s3 or memory)", c.Archive.Backend))
	}

	return errors.Join(errs...)
}
