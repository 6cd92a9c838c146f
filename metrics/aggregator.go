package metrics

import (
	"errors"
	"fmt"
	"math"

	"github.com/pithecene-io/crossflow/types"
)

// ErrInvalidLoss is returned when an entry carries a loss that cannot be
// aggregated (negative or non-finite).
var ErrInvalidLoss = errors.New("invalid cycle loss")

// Totals is the cumulative comparison over the entries replayed so far.
type Totals struct {
	// AdaptiveLoss is the sum of CycleLoss over the replayed adaptive entries.
	AdaptiveLoss float64 `json:"adaptive_loss" msgpack:"adaptive_loss"`
	// FixedLoss is the sum of CycleLoss over the replayed fixed entries.
	FixedLoss float64 `json:"fixed_loss" msgpack:"fixed_loss"`
	// GainPercent is the signed efficiency gain of adaptive over fixed.
	GainPercent float64 `json:"gain_percent" msgpack:"gain_percent"`
	// Entries is the number of entries consumed per track.
	Entries int `json:"entries" msgpack:"entries"`
}

// PointsSaved is the loss difference floored at zero, for display.
// GainPercent is never clamped.
func (t Totals) PointsSaved() float64 {
	return math.Max(0, t.FixedLoss-t.AdaptiveLoss)
}

// Gain returns (fixed - adaptive) / fixed * 100, or 0 when fixed is not positive.
func Gain(adaptiveLoss, fixedLoss float64) float64 {
	if fixedLoss <= 0 {
		return 0
	}
	return (fixedLoss - adaptiveLoss) / fixedLoss * 100
}

// Accumulate sums both prefixes in array order and derives the gain.
// Callers pass adaptive[:k] and fixed[:k].
func Accumulate(adaptive, fixed []types.LogEntry) (Totals, error) {
	var agg Aggregator
	if err := agg.Add(adaptive, fixed); err != nil {
		return Totals{}, err
	}
	return agg.Totals(), nil
}

// Aggregator keeps running sums. Adding batches one after another yields
// bit-for-bit the same sums as Accumulate over the concatenated prefix,
// since additions happen in the same order.
//
// Aggregator is not safe for concurrent use; the replay scheduler owns it.
type Aggregator struct {
	adaptive float64
	fixed    float64
	entries  int
}

// Add folds the next batch into the totals. On error the aggregator is left
// unchanged.
func (a *Aggregator) Add(adaptive, fixed []types.LogEntry) error {
	sumA, err := fold(a.adaptive, adaptive, types.TrackAdaptive)
	if err != nil {
		return err
	}
	sumF, err := fold(a.fixed, fixed, types.TrackFixed)
	if err != nil {
		return err
	}
	a.adaptive = sumA
	a.fixed = sumF
	a.entries += max(len(adaptive), len(fixed))
	return nil
}

// Totals returns the current snapshot.
func (a *Aggregator) Totals() Totals {
	return Totals{
		AdaptiveLoss: a.adaptive,
		FixedLoss:    a.fixed,
		GainPercent:  Gain(a.adaptive, a.fixed),
		Entries:      a.entries,
	}
}

// Reset clears all sums.
func (a *Aggregator) Reset() {
	*a = Aggregator{}
}

func fold(sum float64, entries []types.LogEntry, track types.Track) (float64, error) {
	for _, e := range entries {
		if e.CycleLoss < 0 || math.IsNaN(e.CycleLoss) || math.IsInf(e.CycleLoss, 0) {
			return 0, fmt.Errorf("%w: %s cycle %d loss %v", ErrInvalidLoss, track, e.Cycle, e.CycleLoss)
		}
		sum += e.CycleLoss
	}
	return sum, nil
}
