package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/pithecene-io/crossflow/types"
)

func entries(losses ...float64) []types.LogEntry {
	out := make([]types.LogEntry, len(losses))
	for i, l := range losses {
		out[i] = types.LogEntry{Cycle: i + 1, PhaseSequence: "1. North", CycleLoss: l}
	}
	return out
}

func TestGain(t *testing.T) {
	tests := []struct {
		name     string
		adaptive float64
		fixed    float64
		want     float64
	}{
		{"quarter saved", 150, 200, 25},
		{"adaptive worse is negative", 300, 200, -50},
		{"fixed zero with adaptive loss", 10, 0, 0},
		{"both zero", 0, 0, 0},
		{"adaptive perfect", 0, 80, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Gain(tt.adaptive, tt.fixed); got != tt.want {
				t.Errorf("Gain(%v, %v) = %v, want %v", tt.adaptive, tt.fixed, got, tt.want)
			}
		})
	}
}

func TestAggregator_IncrementalMatchesPrefixSum(t *testing.T) {
	adaptive := entries(0.1, 0.2, 0.3, 12.7, 5.05, 0.01, 99.99, 3.3, 4.4)
	fixed := entries(1.1, 0.7, 2.3, 18.2, 6.6, 0.02, 120.5, 7.7, 8.8)

	for batch := 1; batch <= 4; batch++ {
		var agg Aggregator
		for from := 0; from < len(adaptive); from += batch {
			to := min(from+batch, len(adaptive))
			if err := agg.Add(adaptive[from:to], fixed[from:to]); err != nil {
				t.Fatalf("Add failed: %v", err)
			}

			want, err := Accumulate(adaptive[:to], fixed[:to])
			if err != nil {
				t.Fatalf("Accumulate failed: %v", err)
			}
			if got := agg.Totals(); got != want {
				t.Fatalf("batch=%d k=%d: incremental %+v != prefix %+v", batch, to, got, want)
			}
		}
	}
}

func TestAccumulate_FullReplayScenario(t *testing.T) {
	totals, err := Accumulate(entries(50, 50, 50), entries(100, 50, 50))
	if err != nil {
		t.Fatalf("Accumulate failed: %v", err)
	}
	if totals.AdaptiveLoss != 150 || totals.FixedLoss != 200 {
		t.Errorf("losses = %v/%v, want 150/200", totals.AdaptiveLoss, totals.FixedLoss)
	}
	if totals.GainPercent != 25.0 {
		t.Errorf("GainPercent = %v, want 25", totals.GainPercent)
	}
	if totals.PointsSaved() != 50 {
		t.Errorf("PointsSaved = %v, want 50", totals.PointsSaved())
	}
	if totals.Entries != 3 {
		t.Errorf("Entries = %d, want 3", totals.Entries)
	}
}

func TestTotals_PointsSavedFlooredGainNot(t *testing.T) {
	totals, err := Accumulate(entries(90), entries(60))
	if err != nil {
		t.Fatalf("Accumulate failed: %v", err)
	}
	if totals.PointsSaved() != 0 {
		t.Errorf("PointsSaved = %v, want 0", totals.PointsSaved())
	}
	if totals.GainPercent != -50 {
		t.Errorf("GainPercent = %v, want -50", totals.GainPercent)
	}
}

func TestAggregator_RejectsInvalidLoss(t *testing.T) {
	tests := []struct {
		name string
		loss float64
	}{
		{"negative", -1},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var agg Aggregator
			if err := agg.Add(entries(5), entries(5)); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			before := agg.Totals()

			err := agg.Add(entries(tt.loss), entries(1))
			if !errors.Is(err, ErrInvalidLoss) {
				t.Fatalf("err = %v, want ErrInvalidLoss", err)
			}
			if agg.Totals() != before {
				t.Errorf("totals changed after failed Add: %+v", agg.Totals())
			}
		})
	}
}

func TestAggregator_Reset(t *testing.T) {
	var agg Aggregator
	_ = agg.Add(entries(1, 2), entries(3, 4))
	agg.Reset()
	if agg.Totals() != (Totals{}) {
		t.Errorf("Totals after Reset = %+v, want zero", agg.Totals())
	}
}
