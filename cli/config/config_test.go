package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/crossflow/types"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `service:
  url: http://sim.internal:5000/api/simulate
  timeout: 20s
  mode: basic
  headers:
    X-Team: traffic

replay:
  interval: 100ms
  batch_size: 2

scenario:
  total_cycles: 30
  avg_service_time: 3
  arrivals:
    north: [2, 6]
    east: [1, 3]
  lanes:
    ns: 2
    ew: 4
  fixed_times:
    west: 50
  ev_percent:
    south: 10

adapter:
  type: webhook
  url: https://hooks.example.com/crossflow
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3

archive:
  backend: s3
  path: my-bucket/prefix
  dataset: crossflow
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true

stream:
  listen: :8090
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Service
	assertEqual(t, "service.url", cfg.Service.URL, "http://sim.internal:5000/api/simulate")
	assertEqual(t, "service.mode", cfg.Service.Mode, "basic")
	assertEqual(t, "service.headers.X-Team", cfg.Service.Headers["X-Team"], "traffic")
	if cfg.Service.Timeout.Duration != 20*time.Second {
		t.Errorf("expected service.timeout=20s, got %v", cfg.Service.Timeout.Duration)
	}

	// Replay
	if cfg.Replay.Interval.Duration != 100*time.Millisecond {
		t.Errorf("expected replay.interval=100ms, got %v", cfg.Replay.Interval.Duration)
	}
	if cfg.Replay.BatchSize != 2 {
		t.Errorf("expected replay.batch_size=2, got %d", cfg.Replay.BatchSize)
	}

	// Scenario, merged over defaults
	if cfg.Scenario.TotalCycles != 30 {
		t.Errorf("expected total_cycles=30, got %d", cfg.Scenario.TotalCycles)
	}
	if got := cfg.Scenario.Arrivals["north"]; got != (types.Range{Min: 2, Max: 6}) {
		t.Errorf("arrivals.north = %v, want [2 6]", got)
	}
	if got := cfg.Scenario.Arrivals["south"]; got != (types.Range{Min: 1, Max: 4}) {
		t.Errorf("arrivals.south = %v, want default [1 4]", got)
	}
	if cfg.Scenario.Lanes != (types.Lanes{NS: 2, EW: 4}) {
		t.Errorf("lanes = %+v, want NS=2 EW=4", cfg.Scenario.Lanes)
	}
	if cfg.Scenario.FixedTimes["west"] != 50 || cfg.Scenario.FixedTimes["north"] != 45 {
		t.Errorf("fixed_times = %v, want west=50 and default north=45", cfg.Scenario.FixedTimes)
	}
	if cfg.Scenario.EVPercent["south"] != 10 {
		t.Errorf("ev_percent.south = %v, want 10", cfg.Scenario.EVPercent["south"])
	}

	// Adapter
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/crossflow")
	assertEqual(t, "adapter.headers.Authorization", cfg.Adapter.Headers["Authorization"], "Bearer token123")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("expected adapter.timeout=10s, got %v", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("expected adapter.retries=3, got %v", cfg.Adapter.Retries)
	}

	// Archive
	assertEqual(t, "archive.backend", cfg.Archive.Backend, "s3")
	assertEqual(t, "archive.path", cfg.Archive.Path, "my-bucket/prefix")
	assertEqual(t, "archive.region", cfg.Archive.Region, "us-east-1")
	assertEqual(t, "archive.endpoint", cfg.Archive.Endpoint, "https://example.com")
	if !cfg.Archive.S3PathStyle {
		t.Error("expected archive.s3_path_style=true")
	}

	// Stream
	assertEqual(t, "stream.listen", cfg.Stream.Listen, ":8090")

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for empty config: %v", err)
	}
	assertDefaults(t, cfg)
}

func TestLoad_WhitespaceOnlyConfig(t *testing.T) {
	path := writeTemp(t, "   \n  \n  \n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for whitespace-only config: %v", err)
	}
	assertDefaults(t, cfg)
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	path := writeTemp(t, "# This is a comment\n# Another comment\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for comments-only config: %v", err)
	}
	assertDefaults(t, cfg)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/crossflow.yaml")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "service: [unterminated")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "invalid YAML") {
		t.Errorf("expected invalid YAML error, got: %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("CROSSFLOW_SIM_URL", "http://env-host/api/simulate")

	path := writeTemp(t, "service:\n  url: ${CROSSFLOW_SIM_URL}\n  mode: ${CROSSFLOW_MODE:-basic}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "service.url", cfg.Service.URL, "http://env-host/api/simulate")
	assertEqual(t, "service.mode", cfg.Service.Mode, "basic")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `service:
  url: http://localhost
bogus_key: should_fail
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	yaml := `archive:
  backend: fs
  path: ./data
  unknown_field: bad
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown nested key, got nil")
	}
	if !strings.Contains(err.Error(), "unknown_field") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	// retries: 0 should parse as *int(0), not nil.
	yaml := `adapter:
  type: webhook
  url: https://example.com
  retries: 0
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil {
		t.Fatal("expected retries to be non-nil")
	}
	if *cfg.Adapter.Retries != 0 {
		t.Errorf("expected retries=0, got %d", *cfg.Adapter.Retries)
	}
}

func TestLoad_RetriesOmittedIsNil(t *testing.T) {
	yaml := `adapter:
  type: webhook
  url: https://example.com
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries != nil {
		t.Errorf("expected retries to be nil, got %d", *cfg.Adapter.Retries)
	}
}

func TestLoad_RedisAdapterConfig(t *testing.T) {
	yaml := `adapter:
  type: redis
  url: redis://localhost:6379/0
  channel: custom:events
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "redis")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "redis://localhost:6379/0")
	assertEqual(t, "adapter.channel", cfg.Adapter.Channel, "custom:events")
}

func TestLoad_InvalidRangeShape(t *testing.T) {
	path := writeTemp(t, "scenario:\n  arrivals:\n    north: [1, 2, 3]\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for three-element range")
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	path := writeTemp(t, "replay:\n  interval: not-a-duration\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("expected invalid duration error, got: %v", err)
	}
}

func TestDuration_EmptyKeepsDefault(t *testing.T) {
	path := writeTemp(t, "replay:\n  interval: \"\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Replay.Interval.Duration != 50*time.Millisecond {
		t.Errorf("expected default interval, got %v", cfg.Replay.Interval.Duration)
	}
}

func TestDuration_MarshalYAML(t *testing.T) {
	got, err := Duration{90 * time.Second}.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML failed: %v", err)
	}
	if got != "1m30s" {
		t.Errorf("MarshalYAML = %v, want 1m30s", got)
	}
}

func TestParseApproach(t *testing.T) {
	tests := []struct {
		in      string
		want    types.Approach
		wantErr bool
	}{
		{"north", types.North, false},
		{"SOUTH", types.South, false},
		{"East", types.East, false},
		{"west", types.West, false},
		{"up", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseApproach(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseApproach(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseApproach(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToSimConfig_Defaults(t *testing.T) {
	sim, err := Default().ToSimConfig()
	if err != nil {
		t.Fatalf("ToSimConfig failed: %v", err)
	}
	want := types.DefaultSimConfig()
	if sim.TotalCycles != want.TotalCycles || sim.AvgServiceTime != want.AvgServiceTime || sim.Mode != want.Mode {
		t.Errorf("scalars = %+v, want %+v", sim, want)
	}
	for _, a := range types.Approaches {
		if sim.Arrivals[a] != want.Arrivals[a] {
			t.Errorf("Arrivals[%s] = %v, want %v", a, sim.Arrivals[a], want.Arrivals[a])
		}
		if sim.FixedTimes[a] != want.FixedTimes[a] {
			t.Errorf("FixedTimes[%s] = %v, want %v", a, sim.FixedTimes[a], want.FixedTimes[a])
		}
		if sim.EVPercent[a] != want.EVPercent[a] {
			t.Errorf("EVPercent[%s] = %v, want %v", a, sim.EVPercent[a], want.EVPercent[a])
		}
	}
}

func TestToSimConfig_CapitalizedKeyOverridesDefault(t *testing.T) {
	path := writeTemp(t, "scenario:\n  arrivals:\n    North: [7, 9]\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sim, err := cfg.ToSimConfig()
	if err != nil {
		t.Fatalf("ToSimConfig failed: %v", err)
	}
	if got := sim.Arrivals[types.North]; got != (types.Range{Min: 7, Max: 9}) {
		t.Errorf("Arrivals[North] = %v, want [7 9]", got)
	}
}

func TestToSimConfig_UnknownApproach(t *testing.T) {
	cfg := Default()
	cfg.Scenario.EVPercent["northeast"] = 5
	_, err := cfg.ToSimConfig()
	if err == nil || !strings.Contains(err.Error(), "scenario.ev_percent") {
		t.Errorf("expected scenario.ev_percent error, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	retries := -1
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero timeout", func(c *Config) { c.Service.Timeout = Duration{} }, "service.timeout"},
		{"zero interval", func(c *Config) { c.Replay.Interval = Duration{} }, "replay"},
		{"batch size zero", func(c *Config) { c.Replay.BatchSize = 0 }, "replay"},
		{"unknown mode", func(c *Config) { c.Service.Mode = "full" }, "payload mode"},
		{"inverted range", func(c *Config) { c.Scenario.Arrivals["east"] = types.Range{Min: 5, Max: 1} }, "arrival range"},
		{"zero lanes", func(c *Config) { c.Scenario.Lanes.EW = 0 }, "lane counts"},
		{"ev over 100", func(c *Config) { c.Scenario.EVPercent["west"] = 120 }, "EV percent"},
		{"unknown adapter", func(c *Config) { c.Adapter.Type = "kafka" }, "unknown adapter type"},
		{"adapter without url", func(c *Config) { c.Adapter.Type = "redis" }, "adapter.url"},
		{"negative retries", func(c *Config) {
			c.Adapter.Type, c.Adapter.URL, c.Adapter.Retries = "webhook", "http://x", &retries
		}, "adapter.retries"},
		{"unknown backend", func(c *Config) { c.Archive.Backend = "gcs" }, "unknown archive backend"},
		{"s3 without path", func(c *Config) { c.Archive.Backend = "s3" }, "archive.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Adapter.Type = "kafka"
	cfg.Archive.Backend = "gcs"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "kafka") || !strings.Contains(err.Error(), "gcs") {
		t.Errorf("expected both problems reported, got: %v", err)
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CROSSFLOW_DOTENV_A=from-file\nCROSSFLOW_DOTENV_B=from-file\n"), 0o644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("CROSSFLOW_DOTENV_B", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("CROSSFLOW_DOTENV_A") })

	if err := LoadDotenv(path); err != nil {
		t.Fatalf("LoadDotenv failed: %v", err)
	}
	assertEqual(t, "CROSSFLOW_DOTENV_A", os.Getenv("CROSSFLOW_DOTENV_A"), "from-file")
	assertEqual(t, "CROSSFLOW_DOTENV_B", os.Getenv("CROSSFLOW_DOTENV_B"), "from-env")

	if err := LoadDotenv(filepath.Join(dir, "missing.env")); err == nil {
		t.Error("expected error for missing env file")
	}
}

func assertDefaults(t *testing.T, cfg *Config) {
	t.Helper()
	if cfg.Service.Timeout.Duration != 15*time.Second {
		t.Errorf("default timeout = %v, want 15s", cfg.Service.Timeout.Duration)
	}
	if cfg.Replay.BatchSize != 4 || cfg.Replay.Interval.Duration != 50*time.Millisecond {
		t.Errorf("default replay = %+v, want 50ms x 4", cfg.Replay)
	}
	assertEqual(t, "service.mode", cfg.Service.Mode, "extended")
	if cfg.Adapter.Type != "" || cfg.Archive.Backend != "" || cfg.Stream.Listen != "" {
		t.Error("expected adapter, archive and stream to be disabled by default")
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "crossflow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
