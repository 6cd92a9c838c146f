package client

import "github.com/pithecene-io/crossflow/types"

// basicPayload is the original request shape: arrival ranges only.
type basicPayload struct {
	TotalCycles   int                            `json:"total_cycles"`
	AvgCarTime    float64                        `json:"avg_car_time"`
	ArrivalRanges map[types.Approach]types.Range `json:"arrival_ranges"`
	EVProbs       map[types.Approach]float64     `json:"ev_probs"`
}

// extendedPayload adds lane counts and fixed-timer durations.
type extendedPayload struct {
	TotalCycles    int                            `json:"total_cycles"`
	AvgCarTime     float64                        `json:"avg_car_time"`
	ArrivalsPerMin map[types.Approach]types.Range `json:"arrivals_per_min"`
	Lanes          types.Lanes                    `json:"lanes"`
	FxTimes        map[types.Approach]int         `json:"fx_times"`
	EVProbs        map[types.Approach]float64     `json:"ev_probs"`
}

// BuildPayload returns the request body value for cfg's mode.
// EV probabilities are converted from percent to fractions in [0, 1].
func BuildPayload(cfg *types.SimConfig) any {
	evProbs := make(map[types.Approach]float64, len(types.Approaches))
	for _, a := range types.Approaches {
		evProbs[a] = cfg.EVPercent[a] / 100
	}

	arrivals := make(map[types.Approach]types.Range, len(cfg.Arrivals))
	for a, r := range cfg.Arrivals {
		arrivals[a] = r
	}

	if cfg.Mode == types.PayloadBasic {
		return basicPayload{
			TotalCycles:   cfg.TotalCycles,
			AvgCarTime:    cfg.AvgServiceTime,
			ArrivalRanges: arrivals,
			EVProbs:       evProbs,
		}
	}

	fxTimes := make(map[types.Approach]int, len(cfg.FixedTimes))
	for a, t := range cfg.FixedTimes {
		fxTimes[a] = t
	}
	return extendedPayload{
		TotalCycles:    cfg.TotalCycles,
		AvgCarTime:     cfg.AvgServiceTime,
		ArrivalsPerMin: arrivals,
		Lanes:          cfg.Lanes,
		FxTimes:        fxTimes,
		EVProbs:        evProbs,
	}
}
