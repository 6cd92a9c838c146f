package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/crossflow/replay"
	"github.com/pithecene-io/crossflow/runtime"
)

// Messages delivered to the dashboard.
type (
	// StartedMsg announces a new replay generation and its bound.
	StartedMsg replay.Snapshot
	// BatchMsg carries one batch emission.
	BatchMsg replay.Batch
	// FinishedMsg carries the terminal notification of a generation.
	FinishedMsg replay.Terminal
	// ReportMsg carries the report of a finished run.
	ReportMsg struct{ Report *runtime.Report }
	// ErrorMsg reports a launch failure.
	ErrorMsg struct{ Err error }
)

const feedBuffer = 256

// Feed bridges the replay scheduler to a running dashboard. It implements
// replay.Presenter; sends block only while the buffer is full and never
// after Close.
type Feed struct {
	msgs chan tea.Msg
	done chan struct{}
	once sync.Once
}

var _ replay.Presenter = (*Feed)(nil)

// NewFeed creates a feed.
func NewFeed() *Feed {
	return &Feed{
		msgs: make(chan tea.Msg, feedBuffer),
		done: make(chan struct{}),
	}
}

// Batch implements replay.Presenter.
func (f *Feed) Batch(b replay.Batch) { f.Send(BatchMsg(b)) }

// Finished implements replay.Presenter.
func (f *Feed) Finished(t replay.Terminal) { f.Send(FinishedMsg(t)) }

// Send queues a message for the dashboard. It is a no-op after Close.
func (f *Feed) Send(msg tea.Msg) {
	select {
	case <-f.done:
		return
	default:
	}
	select {
	case f.msgs <- msg:
	case <-f.done:
	}
}

// Close releases blocked senders. Call it once the dashboard has exited.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.done) })
}

// next waits for the next queued message.
func (f *Feed) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-f.msgs:
			return msg
		case <-f.done:
			return nil
		}
	}
}

// Run shows the dashboard until the user quits, then closes the feed.
func Run(model DashboardModel) error {
	defer model.feed.Close()
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
