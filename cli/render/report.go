package render

import (
	"fmt"
	"time"

	"github.com/pithecene-io/crossflow/capacity"
	"github.com/pithecene-io/crossflow/cli/tui"
	"github.com/pithecene-io/crossflow/runtime"
)

func (r *Renderer) renderReportTable(rep *runtime.Report) error {
	rows := []Field{
		{"session_id", rep.SessionID},
		{"generation", fmt.Sprintf("%d", rep.Generation)},
		{"state", r.colorState(rep)},
		{"outcome", string(rep.Outcome)},
		{"message", rep.Message},
		{"adaptive_loss", fmt.Sprintf("%.2f", rep.AdaptiveLoss)},
		{"fixed_loss", fmt.Sprintf("%.2f", rep.FixedLoss)},
		{"gain_percent", fmt.Sprintf("%+.2f%%", rep.GainPercent)},
		{"points_saved", fmt.Sprintf("%.2f", rep.PointsSaved)},
		{"entries", fmt.Sprintf("%d/%d", rep.Entries, rep.Bound)},
		{"truncated", fmt.Sprintf("%d", rep.Truncated)},
		{"dropped", fmt.Sprintf("%d", rep.Dropped)},
		{"batches", fmt.Sprintf("%d", rep.Batches)},
		{"duration", (time.Duration(rep.DurationMs) * time.Millisecond).String()},
		{"finished_at", rep.FinishedAt.UTC().Format(time.RFC3339)},
	}
	if rep.Capacity != nil {
		rows = append(rows,
			Field{"capacity_ratio", fmt.Sprintf("%.1f%%", rep.Capacity.Ratio)},
			Field{"capacity_band", r.colorBand(rep.Capacity.Band())},
		)
	}
	rows = append(rows, Field{"exit_code", fmt.Sprintf("%d", rep.ExitCode)})
	return r.writeFields(rows)
}

func (r *Renderer) renderEstimateTable(e capacity.Estimate) error {
	return r.writeFields([]Field{
		{"demand", fmt.Sprintf("%.2f veh/min", e.Demand)},
		{"capacity", fmt.Sprintf("%.2f veh/min", e.Capacity)},
		{"ratio", fmt.Sprintf("%.1f%%", e.Ratio)},
		{"band", r.colorBand(e.Band())},
		{"gridlock_imminent", fmt.Sprintf("%t", e.GridlockImminent())},
	})
}

func (r *Renderer) colorState(rep *runtime.Report) string {
	if r.noColor {
		return rep.State.String()
	}
	return tui.StateStyle(rep.State).Render(rep.State.String())
}

func (r *Renderer) colorBand(b capacity.Band) string {
	if r.noColor {
		return string(b)
	}
	return tui.BandStyle(b).Render(string(b))
}
