package replay

import (
	"github.com/pithecene-io/crossflow/metrics"
	"github.com/pithecene-io/crossflow/types"
)

// Batch is one tick's worth of newly available entries.
// Entries are in service order; display layers that show most-recent-first
// prepend them in reverse.
type Batch struct {
	Generation uint64 `json:"generation"`
	// From and To bound the cursor range [From, To) covered by this batch.
	From     int              `json:"from"`
	To       int              `json:"to"`
	Adaptive []types.LogEntry `json:"adaptive"`
	Fixed    []types.LogEntry `json:"fixed"`
	// Totals is cumulative over every entry up to To.
	Totals metrics.Totals `json:"totals"`
}

// Terminal is the single end-of-run notification of a generation.
type Terminal struct {
	Generation uint64         `json:"generation"`
	State      State          `json:"state"`
	Totals     metrics.Totals `json:"totals"`
	// Cursor is the number of entries per track emitted before the end.
	Cursor int `json:"cursor"`
	// Bound is the replay length (the shorter track).
	Bound   int `json:"bound"`
	Batches int `json:"batches"`
	// Err is set only when State is StateErrored.
	Err error `json:"-"`
}

// Presenter receives replay emissions.
//
// Methods are called with the scheduler's lock held, in strict cursor order.
// Implementations must return promptly and must not call back into the
// scheduler on the same goroutine.
type Presenter interface {
	Batch(b Batch)
	Finished(t Terminal)
}

// Presenters fans emissions out to each non-nil presenter in order.
func Presenters(ps ...Presenter) Presenter {
	out := make(multi, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

type multi []Presenter

func (m multi) Batch(b Batch) {
	for _, p := range m {
		p.Batch(b)
	}
}

// Finished delivers t to every presenter even if one panics; the first
// panic is re-raised once all have been called.
func (m multi) Finished(t Terminal) {
	var first any
	for _, p := range m {
		func() {
			defer func() {
				if r := recover(); r != nil && first == nil {
					first = r
				}
			}()
			p.Finished(t)
		}()
	}
	if first != nil {
		panic(first)
	}
}

// Funcs adapts plain functions to a Presenter. Nil fields are skipped.
type Funcs struct {
	OnBatch    func(Batch)
	OnFinished func(Terminal)
}

func (f Funcs) Batch(b Batch) {
	if f.OnBatch != nil {
		f.OnBatch(b)
	}
}

func (f Funcs) Finished(t Terminal) {
	if f.OnFinished != nil {
		f.OnFinished(t)
	}
}
