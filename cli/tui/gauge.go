package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/crossflow/capacity"
)

// gaugeMax is the ratio, in percent, that fills the gauge.
const gaugeMax = 150.0

// Gauge renders a saturation bar for a capacity estimate. The tick marks the
// 100% point; the bar is colored by band.
func Gauge(e capacity.Estimate, width int) string {
	if width < 10 {
		width = 10
	}

	ratio := e.Ratio
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	}
	filled := int(math.Round(math.Min(ratio, gaugeMax) / gaugeMax * float64(width)))
	mark := int(math.Round(capacity.SaturatedThreshold / gaugeMax * float64(width)))

	var bar strings.Builder
	for i := range width {
		switch {
		case i == mark:
			bar.WriteString("┃")
		case i < filled:
			bar.WriteString("█")
		default:
			bar.WriteString("░")
		}
	}

	style := BandStyle(e.Band())
	return fmt.Sprintf("%s %s %s",
		style.Render(bar.String()),
		style.Bold(true).Render(fmt.Sprintf("%5.1f%%", e.Ratio)),
		style.Render(string(e.Band())))
}

// RenderCapacity renders an estimate as a static panel, for the capacity
// command and the dashboard header.
func RenderCapacity(e capacity.Estimate) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Capacity"))
	b.WriteString("\n")
	rows := [][2]string{
		{"Demand", fmt.Sprintf("%.1f veh/min", e.Demand)},
		{"Capacity", fmt.Sprintf("%.1f veh/min", e.Capacity)},
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(row[0]+":"), ValueStyle.Render(row[1])))
	}
	b.WriteString(fmt.Sprintf("%s %s", LabelStyle.Render("Saturation:"), Gauge(e, 30)))
	if e.GridlockImminent() {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Bold(true).Render("⚠ demand exceeds capacity: gridlock imminent"))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(b.String())
}
