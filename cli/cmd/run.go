package cmd

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crossflow/capacity"
	"github.com/pithecene-io/crossflow/client"
	"github.com/pithecene-io/crossflow/log"
	"github.com/pithecene-io/crossflow/recording"
	"github.com/pithecene-io/crossflow/runtime"
	"github.com/pithecene-io/crossflow/types"
)

// OutputFlags returns the flags shared by replaying commands.
func OutputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write the JSON run report to FILE (- for stderr)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress progress lines",
		},
	}
}

// RunCommand returns the run command.
// It requests one simulation and replays both tracks side by side.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Request a simulation and replay adaptive vs fixed timing",
		Flags: concatFlags(
			ReadOnlyFlags(),
			ConfigFlags(),
			ServiceFlags(),
			ScenarioFlags(),
			ReplayFlags(),
			SideEffectFlags(),
			OutputFlags(),
			LogFlags(),
			[]cli.Flag{
				&cli.StringFlag{
					Name:  "record",
					Usage: "Save the validated simulation result to FILE for `crossflow replay`",
				},
			},
		),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}

	sim, err := cfg.ToSimConfig()
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}
	estimate := capacity.Evaluate(sim.Capacity())

	cl, err := newClient(cfg.Service)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}

	ex := execution{
		cfg:       cfg,
		sessionID: runtime.NewSessionID(),
		estimate:  &estimate,
		requester: cl,
		launch: func(ctx context.Context, session *runtime.Session) (*runtime.Run, error) {
			return session.Launch(ctx, sim)
		},
	}
	if path := c.String("record"); path != "" {
		ex.wrap = func(next runtime.Requester, logger *log.Logger) runtime.Requester {
			return &recorder{next: next, path: path, logger: logger, now: time.Now}
		}
	}

	return execute(c, ex)
}

// recorder saves every successful simulation result before it is replayed.
// A failed save is logged and does not fail the run.
type recorder struct {
	next   runtime.Requester
	path   string
	logger *log.Logger
	now    func() time.Time
}

var _ runtime.Requester = (*recorder)(nil)

func (r *recorder) Run(ctx context.Context, cfg *types.SimConfig) (*client.Result, error) {
	res, err := r.next.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := recording.Save(r.path, res.Run, r.now()); err != nil {
		r.logger.Error("failed to save recording", map[string]any{"path": r.path, "error": err.Error()})
		return res, nil
	}
	r.logger.Info("recording saved", map[string]any{
		"path":     r.path,
		"adaptive": len(res.Run.Adaptive),
		"fixed":    len(res.Run.Fixed),
	})
	return res, nil
}
