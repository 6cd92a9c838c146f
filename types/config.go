package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Approach is one of the four intersection approaches.
type Approach string

// Approach constants.
const (
	North Approach = "North"
	South Approach = "South"
	East  Approach = "East"
	West  Approach = "West"
)

// Approaches lists the approaches in service order.
var Approaches = []Approach{North, South, East, West}

// Range is an inclusive [Min, Max] arrival rate in vehicles per minute.
// It encodes as a two-element array in JSON and YAML.
type Range struct {
	Min float64
	Max float64
}

// Midpoint returns the mean of Min and Max.
func (r Range) Midpoint() float64 {
	return (r.Min + r.Max) / 2
}

// MarshalJSON encodes the range as [min, max].
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{r.Min, r.Max})
}

// UnmarshalJSON decodes a [min, max] pair.
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	return r.setPair(pair)
}

// MarshalYAML encodes the range as [min, max].
func (r Range) MarshalYAML() (any, error) {
	return []float64{r.Min, r.Max}, nil
}

// UnmarshalYAML decodes a [min, max] pair.
func (r *Range) UnmarshalYAML(unmarshal func(any) error) error {
	var pair []float64
	if err := unmarshal(&pair); err != nil {
		return err
	}
	return r.setPair(pair)
}

func (r *Range) setPair(pair []float64) error {
	if len(pair) != 2 {
		return fmt.Errorf("range must have exactly 2 values, got %d", len(pair))
	}
	r.Min, r.Max = pair[0], pair[1]
	return nil
}

// Lanes holds the lane count per axis. Each axis serves two approaches.
type Lanes struct {
	NS int `json:"NS" yaml:"ns"`
	EW int `json:"EW" yaml:"ew"`
}

// PayloadMode selects which request shape is sent to the service.
type PayloadMode string

const (
	// PayloadBasic sends arrival ranges only.
	PayloadBasic PayloadMode = "basic"
	// PayloadExtended sends arrivals plus lane counts and fixed-timer durations.
	PayloadExtended PayloadMode = "extended"
)

// CapacityConfig is the snapshot the capacity estimator works from.
type CapacityConfig struct {
	Arrivals       map[Approach]Range
	Lanes          Lanes
	AvgServiceTime float64
}

// SimConfig is the operator-entered configuration of one simulation run.
type SimConfig struct {
	// TotalCycles is the number of cycles the service simulates.
	TotalCycles int
	// AvgServiceTime is the average per-vehicle crossing time in seconds.
	AvgServiceTime float64
	// Arrivals is the per-approach arrival rate range.
	Arrivals map[Approach]Range
	// Lanes is the per-axis lane count (extended mode).
	Lanes Lanes
	// FixedTimes is the fixed-timer green duration per approach in seconds (extended mode).
	FixedTimes map[Approach]int
	// EVPercent is the per-approach emergency vehicle probability in percent.
	EVPercent map[Approach]float64
	// Mode selects the request shape.
	Mode PayloadMode
}

// DefaultSimConfig returns the stock scenario.
func DefaultSimConfig() *SimConfig {
	return &SimConfig{
		TotalCycles:    50,
		AvgServiceTime: 2.5,
		Arrivals: map[Approach]Range{
			North: {Min: 1, Max: 4},
			South: {Min: 1, Max: 4},
			East:  {Min: 2, Max: 5},
			West:  {Min: 2, Max: 5},
		},
		Lanes:      Lanes{NS: 3, EW: 3},
		FixedTimes: map[Approach]int{North: 45, South: 45, East: 60, West: 60},
		EVPercent:  map[Approach]float64{North: 5, South: 5, East: 5, West: 5},
		Mode:       PayloadExtended,
	}
}

// Capacity returns the capacity snapshot of the configuration.
func (c *SimConfig) Capacity() CapacityConfig {
	arrivals := make(map[Approach]Range, len(c.Arrivals))
	for k, v := range c.Arrivals {
		arrivals[k] = v
	}
	return CapacityConfig{
		Arrivals:       arrivals,
		Lanes:          c.Lanes,
		AvgServiceTime: c.AvgServiceTime,
	}
}

// Validate checks that every numeric input is usable.
func (c *SimConfig) Validate() error {
	if c.TotalCycles < 1 {
		return fmt.Errorf("total cycles must be >= 1, got %d", c.TotalCycles)
	}
	if c.AvgServiceTime <= 0 {
		return fmt.Errorf("average service time must be > 0, got %v", c.AvgServiceTime)
	}
	switch c.Mode {
	case PayloadBasic, PayloadExtended:
	default:
		return fmt.Errorf("invalid payload mode: %q (must be basic or extended)", c.Mode)
	}

	var errs []error
	for _, a := range Approaches {
		r, ok := c.Arrivals[a]
		if !ok {
			errs = append(errs, fmt.Errorf("missing arrival range for %s", a))
			continue
		}
		if r.Min < 0 || r.Max < r.Min {
			errs = append(errs, fmt.Errorf("invalid arrival range for %s: [%v, %v]", a, r.Min, r.Max))
		}
		if p, ok := c.EVPercent[a]; ok && (p < 0 || p > 100) {
			errs = append(errs, fmt.Errorf("EV percent for %s must be within [0, 100], got %v", a, p))
		}
		if c.Mode == PayloadExtended {
			if t, ok := c.FixedTimes[a]; ok && t < 1 {
				errs = append(errs, fmt.Errorf("fixed time for %s must be >= 1, got %d", a, t))
			}
		}
	}
	if c.Lanes.NS < 1 || c.Lanes.EW < 1 {
		errs = append(errs, fmt.Errorf("lane counts must be >= 1, got NS=%d EW=%d", c.Lanes.NS, c.Lanes.EW))
	}
	return errors.Join(errs...)
}
