package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crossflow/recording"
	"github.com/pithecene-io/crossflow/runtime"
)

// ReplayCommand returns the replay command.
// It replays a recording saved by `run --record` without contacting the
// simulation service.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Replay a saved simulation result",
		ArgsUsage: "FILE",
		Flags: concatFlags(
			ReadOnlyFlags(),
			ConfigFlags(),
			ReplayFlags(),
			SideEffectFlags(),
			OutputFlags(),
			LogFlags(),
		),
		Action: replayAction,
	}
}

func replayAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("replay requires exactly one recording FILE", runtime.ExitCodeInvalidConfig)
	}
	path := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}

	header, result, err := recording.Load(path)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}
	if !c.Bool("quiet") && !c.Bool("tui") {
		fmt.Fprintf(c.App.ErrWriter, "recording: %d adaptive / %d fixed entries, recorded %s\n",
			header.Adaptive, header.Fixed, header.RecordedAt.Format("2006-01-02 15:04:05Z07:00"))
	}

	return execute(c, execution{
		cfg:       cfg,
		sessionID: runtime.NewSessionID(),
		launch: func(_ context.Context, session *runtime.Session) (*runtime.Run, error) {
			return session.Replay(result)
		},
	})
}
