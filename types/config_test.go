package types //nolint:revive // types is a valid package name

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRange_JSONPair(t *testing.T) {
	data, err := json.Marshal(Range{Min: 1, Max: 4})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[1,4]" {
		t.Errorf("marshal = %s, want [1,4]", data)
	}

	var r Range
	if err := json.Unmarshal([]byte("[2,5]"), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Min != 2 || r.Max != 5 {
		t.Errorf("got %+v, want {2 5}", r)
	}

	if err := json.Unmarshal([]byte("[1,2,3]"), &r); err == nil {
		t.Error("expected error for three-element range")
	}
}

func TestRange_Midpoint(t *testing.T) {
	if got := (Range{Min: 2, Max: 5}).Midpoint(); got != 3.5 {
		t.Errorf("Midpoint = %v, want 3.5", got)
	}
}

func TestDefaultSimConfig_Valid(t *testing.T) {
	if err := DefaultSimConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSimConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SimConfig)
		wantErr string
	}{
		{"zero cycles", func(c *SimConfig) { c.TotalCycles = 0 }, "total cycles"},
		{"zero service time", func(c *SimConfig) { c.AvgServiceTime = 0 }, "service time"},
		{"bad mode", func(c *SimConfig) { c.Mode = "turbo" }, "payload mode"},
		{"inverted range", func(c *SimConfig) { c.Arrivals[East] = Range{Min: 6, Max: 2} }, "arrival range for East"},
		{"missing approach", func(c *SimConfig) { delete(c.Arrivals, West) }, "missing arrival range for West"},
		{"ev above 100", func(c *SimConfig) { c.EVPercent[North] = 120 }, "EV percent for North"},
		{"zero lanes", func(c *SimConfig) { c.Lanes.EW = 0 }, "lane counts"},
		{"zero fixed time", func(c *SimConfig) { c.FixedTimes[South] = 0 }, "fixed time for South"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSimConfig_BasicModeIgnoresFixedTimes(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.Mode = PayloadBasic
	cfg.FixedTimes[North] = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("basic mode should not validate fixed times: %v", err)
	}
}

func TestSimConfig_CapacityIsSnapshot(t *testing.T) {
	cfg := DefaultSimConfig()
	snap := cfg.Capacity()
	cfg.Arrivals[North] = Range{Min: 10, Max: 20}
	if snap.Arrivals[North].Max != 4 {
		t.Error("capacity snapshot must not alias the live arrivals map")
	}
}
