package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crossflow/cli/config"
)

// loadConfig loads the dotenv file (if any), then the config file (if any),
// then applies flag overrides. Without a config file the defaults are used.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("env-file"); path != "" {
		if err := config.LoadDotenv(path); err != nil {
			return nil, err
		}
	}

	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := applyFlags(c, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags overlays explicitly set flags onto cfg. Flags that are not
// defined on the command are ignored.
func applyFlags(c *cli.Context, cfg *config.Config) error {
	cfg.Service.URL = resolveString(c, "service-url", cfg.Service.URL)
	cfg.Service.Timeout.Duration = resolveDuration(c, "timeout", cfg.Service.Timeout.Duration)
	cfg.Service.Mode = resolveString(c, "mode", cfg.Service.Mode)
	if c.IsSet("service-header") {
		headers, err := parseHeaders(c.StringSlice("service-header"), "--service-header")
		if err != nil {
			return err
		}
		cfg.Service.Headers = mergeHeaders(cfg.Service.Headers, headers)
	}

	cfg.Scenario.TotalCycles = resolveInt(c, "cycles", cfg.Scenario.TotalCycles)
	cfg.Scenario.AvgServiceTime = resolveFloat64(c, "avg-service-time", cfg.Scenario.AvgServiceTime)
	cfg.Scenario.Lanes.NS = resolveInt(c, "lanes-ns", cfg.Scenario.Lanes.NS)
	cfg.Scenario.Lanes.EW = resolveInt(c, "lanes-ew", cfg.Scenario.Lanes.EW)

	cfg.Replay.Interval.Duration = resolveDuration(c, "interval", cfg.Replay.Interval.Duration)
	cfg.Replay.BatchSize = resolveInt(c, "batch-size", cfg.Replay.BatchSize)

	cfg.Adapter.Type = resolveString(c, "adapter", cfg.Adapter.Type)
	cfg.Adapter.URL = resolveString(c, "adapter-url", cfg.Adapter.URL)
	cfg.Adapter.Channel = resolveString(c, "adapter-channel", cfg.Adapter.Channel)
	cfg.Adapter.Timeout.Duration = resolveDuration(c, "adapter-timeout", cfg.Adapter.Timeout.Duration)
	if c.IsSet("adapter-retries") {
		retries := c.Int("adapter-retries")
		cfg.Adapter.Retries = &retries
	}
	if c.IsSet("adapter-header") {
		headers, err := parseHeaders(c.StringSlice("adapter-header"), "--adapter-header")
		if err != nil {
			return err
		}
		cfg.Adapter.Headers = mergeHeaders(cfg.Adapter.Headers, headers)
	}

	cfg.Archive.Backend = resolveString(c, "archive", cfg.Archive.Backend)
	cfg.Archive.Path = resolveString(c, "archive-path", cfg.Archive.Path)
	cfg.Archive.Dataset = resolveString(c, "archive-dataset", cfg.Archive.Dataset)
	cfg.Archive.Region = resolveString(c, "archive-s3-region", cfg.Archive.Region)
	cfg.Archive.Endpoint = resolveString(c, "archive-s3-endpoint", cfg.Archive.Endpoint)
	cfg.Archive.S3PathStyle = resolveBool(c, "archive-s3-path-style", cfg.Archive.S3PathStyle)

	cfg.Stream.Listen = resolveString(c, "listen", cfg.Stream.Listen)
	return nil
}

// resolveString returns the flag value when explicitly set, else the
// config value, else the flag default.
func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if cfgVal != "" {
		return cfgVal
	}
	return c.String(name)
}

func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	return cfgVal
}

func resolveFloat64(c *cli.Context, name string, cfgVal float64) float64 {
	if c.IsSet(name) {
		return c.Float64(name)
	}
	return cfgVal
}

func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return cfgVal
}

func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	return cfgVal
}

// parseHeaders parses key=value pairs.
func parseHeaders(values []string, flagName string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		k, val, ok := strings.Cut(v, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid %s %q: expected key=value", flagName, v)
		}
		headers[k] = val
	}
	return headers, nil
}

func mergeHeaders(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
