// Package capacity estimates intersection saturation from the configured
// arrival rates, lane counts and per-vehicle service time.
//
// The estimate feeds the pre-flight warning shown before a simulation is
// launched. It is a pure function; classification into bands is provided for
// display layers only.
package capacity

import "github.com/pithecene-io/crossflow/types"

// DischargeEfficiency is the empirical ratio of achievable saturation flow to
// the theoretical maximum of one vehicle per service time per lane.
const DischargeEfficiency = 0.63

// Band thresholds on the saturation ratio, in percent.
const (
	ElevatedThreshold  = 80.0
	SaturatedThreshold = 100.0
)

// Estimate is the result of Evaluate.
type Estimate struct {
	// Demand is the expected arrivals per minute across all approaches.
	Demand float64 `json:"demand"`
	// Capacity is the estimated discharge per minute.
	Capacity float64 `json:"capacity"`
	// Ratio is Demand / Capacity in percent.
	Ratio float64 `json:"ratio"`
}

// Evaluate computes demand, capacity and the saturation ratio.
//
//	demand   = Σ midpoint(arrivals[approach])
//	lanes    = (NS*2 + EW*2) / 4
//	capacity = (60 / avgServiceTime) * DischargeEfficiency * lanes
//	ratio    = demand / capacity * 100
//
// Inputs are expected to be validated (positive service time and lanes).
func Evaluate(cfg types.CapacityConfig) Estimate {
	var demand float64
	for _, a := range types.Approaches {
		demand += cfg.Arrivals[a].Midpoint()
	}

	capacity := (60 / cfg.AvgServiceTime) * DischargeEfficiency * AverageLanes(cfg.Lanes)

	return Estimate{
		Demand:   demand,
		Capacity: capacity,
		Ratio:    demand / capacity * 100,
	}
}

// AverageLanes is the mean lane count per approach. Each axis lane count is
// weighted twice because an axis serves two opposing approaches.
func AverageLanes(l types.Lanes) float64 {
	return float64(l.NS*2+l.EW*2) / 4
}

// Band classifies a saturation ratio for display emphasis.
type Band string

const (
	BandNominal       Band = "nominal"
	BandElevated      Band = "elevated"
	BandOverSaturated Band = "over_saturated"
)

// Classify maps a ratio to its band: ≤80 nominal, ≤100 elevated, above that
// over-saturated.
func Classify(ratio float64) Band {
	switch {
	case ratio > SaturatedThreshold:
		return BandOverSaturated
	case ratio > ElevatedThreshold:
		return BandElevated
	default:
		return BandNominal
	}
}

// Band returns the display band of the estimate.
func (e Estimate) Band() Band {
	return Classify(e.Ratio)
}

// GridlockImminent reports whether demand exceeds estimated capacity.
func (e Estimate) GridlockImminent() bool {
	return e.Ratio > SaturatedThreshold
}
