package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crossflow/capacity"
	"github.com/pithecene-io/crossflow/cli/config"
	"github.com/pithecene-io/crossflow/cli/render"
	"github.com/pithecene-io/crossflow/cli/tui"
	"github.com/pithecene-io/crossflow/clock"
	"github.com/pithecene-io/crossflow/log"
	"github.com/pithecene-io/crossflow/metrics"
	"github.com/pithecene-io/crossflow/replay"
	"github.com/pithecene-io/crossflow/runtime"
	"github.com/pithecene-io/crossflow/stream"
)

// launchFunc starts the run a command replays.
type launchFunc func(ctx context.Context, session *runtime.Session) (*runtime.Run, error)

// execution is everything a replaying command needs beyond its launch.
type execution struct {
	cfg       *config.Config
	sessionID string
	estimate  *capacity.Estimate
	requester runtime.Requester
	// wrap decorates the requester once the logger exists (run --record).
	wrap func(runtime.Requester, *log.Logger) runtime.Requester
	launch launchFunc

	// progress receives line output; nil means os.Stderr.
	progress io.Writer
	// clock drives the session; nil means wall clock.
	clock clock.Clock
}

// execute wires a session from the command flags, runs one launch to its
// terminal state, renders the report and returns the exit error.
func execute(c *cli.Context, ex execution) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}

	tuiMode := c.Bool("tui")
	if tuiMode && !isStdoutTTY() {
		return cli.Exit("--tui requires a terminal", runtime.ExitCodeInvalidConfig)
	}

	logger, closeLog, err := newLogger(c, ex.sessionID, tuiMode)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}
	defer closeLog()

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	adp, err := buildAdapter(ex.cfg.Adapter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid adapter config: %v", err), runtime.ExitCodeInvalidConfig)
	}

	archive, err := openArchive(ctx, ex.cfg.Archive)
	if err != nil {
		if adp != nil {
			_ = adp.Close()
		}
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}
	if archive != nil {
		defer func() { _ = archive.Close() }()
	}

	var presenters []replay.Presenter
	var feed *tui.Feed
	if tuiMode {
		feed = tui.NewFeed()
		presenters = append(presenters, feed)
	} else if !c.Bool("quiet") {
		out := ex.progress
		if out == nil {
			out = os.Stderr
		}
		presenters = append(presenters, render.NewLines(out))
	}

	var hub *stream.Hub
	if addr := ex.cfg.Stream.Listen; addr != "" {
		hub = stream.NewHub(logger)
		presenters = append(presenters, hub)
		sugar := logger.Sugar()
		go func() {
			if err := stream.Serve(ctx, addr, hub); err != nil {
				sugar.Errorf("websocket feed on %s stopped: %v", addr, err)
			}
		}()
		sugar.Infof("serving websocket feed on %s/ws", addr)
	}

	requester := ex.requester
	if requester != nil && ex.wrap != nil {
		requester = ex.wrap(requester, logger)
	}

	sessCfg := runtime.SessionConfig{
		SessionID: ex.sessionID,
		Requester: requester,
		Clock:     ex.clock,
		Replay:    ex.cfg.ReplayCadence(),
		Presenter: replay.Presenters(presenters...),
		Logger:    logger,
		Collector: metrics.NewCollector(ex.sessionID, ex.cfg.Service.Mode, ex.cfg.Service.URL, ex.cfg.Archive.Backend),
		Adapter:   adp,
	}
	if archive != nil {
		sessCfg.Archive = archive
	}
	session := runtime.NewSession(sessCfg)
	defer func() { _ = session.Close() }()

	startedAt := time.Now()
	var report *runtime.Report
	if tuiMode {
		report, err = runDashboard(ctx, cancel, session, feed, ex)
	} else {
		report, err = runPlain(ctx, session, ex, c.Bool("quiet"))
	}

	if err != nil {
		if report == nil {
			report = runtime.BuildFailureReport(ex.sessionID, err, startedAt, time.Now(), ex.estimate)
		}
		// Request failures never reach the session's archive path.
		if archive != nil && report.Generation == 0 {
			if perr := archive.Put(context.WithoutCancel(ctx), report); perr != nil {
				logger.Error("failed to archive failure report", map[string]any{"error": perr.Error()})
			}
		}
	}

	return finish(c, r, report)
}

// runPlain launches, then waits for the terminal state. A signal cancels
// the active replay so the report still reflects where it stopped.
func runPlain(ctx context.Context, session *runtime.Session, ex execution, quiet bool) (*runtime.Report, error) {
	if ex.estimate != nil && !quiet {
		out := ex.progress
		if out == nil {
			out = os.Stderr
		}
		fmt.Fprintf(out, "capacity: demand %.1f / capacity %.1f veh/min = %.1f%% (%s)\n",
			ex.estimate.Demand, ex.estimate.Capacity, ex.estimate.Ratio, ex.estimate.Band())
	}

	run, err := ex.launch(ctx, session)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { session.Cancel() })
	defer stop()

	return run.Wait(context.Background())
}

type outcome struct {
	report *runtime.Report
	err    error
}

// runDashboard shows the dashboard while the launch proceeds in the
// background. Quitting the dashboard cancels the request or the replay.
func runDashboard(ctx context.Context, cancel context.CancelFunc, session *runtime.Session, feed *tui.Feed, ex execution) (*runtime.Report, error) {
	done := make(chan outcome, 1)
	go func() {
		run, err := ex.launch(ctx, session)
		if err != nil {
			feed.Send(tui.ErrorMsg{Err: err})
			done <- outcome{err: err}
			return
		}
		// The dashboard may have quit while the launch was in flight.
		if ctx.Err() != nil {
			session.Cancel()
		}
		feed.Send(tui.StartedMsg(session.Snapshot()))
		report, err := run.Wait(context.Background())
		if report != nil {
			feed.Send(tui.ReportMsg{Report: report})
		}
		done <- outcome{report: report, err: err}
	}()

	model := tui.NewDashboardModel(feed, ex.sessionID, ex.estimate, func() { session.Cancel() })
	tuiErr := tui.Run(model)

	// The user quit: abort whatever is still in flight.
	session.Cancel()
	cancel()
	out := <-done
	if tuiErr != nil && out.err == nil {
		return out.report, fmt.Errorf("dashboard failed: %w", tuiErr)
	}
	return out.report, out.err
}

// finish renders the report, writes --report and maps the outcome onto the
// process exit code.
func finish(c *cli.Context, r *render.Renderer, report *runtime.Report) error {
	var errs []error
	if err := r.Render(report); err != nil {
		errs = append(errs, fmt.Errorf("failed to render report: %w", err))
	}
	if path := c.String("report"); path != "" {
		if err := runtime.WriteRunReport(report, path); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	msg := ""
	if report.ExitCode != runtime.ExitCodeCompleted {
		msg = report.Message
	}
	return cli.Exit(msg, report.ExitCode)
}
