package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/pithecene-io/crossflow/replay"
)

// Lines is the default, non-TUI presenter: one progress line per batch and
// one line per terminal notification.
type Lines struct {
	mu  sync.Mutex
	out io.Writer
}

var _ replay.Presenter = (*Lines)(nil)

// NewLines creates a line presenter writing to out.
func NewLines(out io.Writer) *Lines {
	return &Lines{out: out}
}

// Batch implements replay.Presenter.
func (l *Lines) Batch(b replay.Batch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[gen %d] %4d-%-4d adaptive=%.1f fixed=%.1f gain=%+.1f%%\n",
		b.Generation, b.From, b.To, b.Totals.AdaptiveLoss, b.Totals.FixedLoss, b.Totals.GainPercent)
}

// Finished implements replay.Presenter.
func (l *Lines) Finished(t replay.Terminal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.Err != nil {
		fmt.Fprintf(l.out, "[gen %d] %s at %d/%d: %v\n", t.Generation, t.State, t.Cursor, t.Bound, t.Err)
		return
	}
	fmt.Fprintf(l.out, "[gen %d] %s at %d/%d gain=%+.1f%%\n",
		t.Generation, t.State, t.Cursor, t.Bound, t.Totals.GainPercent)
}
