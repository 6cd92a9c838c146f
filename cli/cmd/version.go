package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crossflow/cli/render"
	"github.com/pithecene-io/crossflow/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version  string `json:"version"`
	Contract string `json:"contract"`
	Commit   string `json:"commit"`
}

// Fields implements render.Detail.
func (v VersionResponse) Fields() []render.Field {
	return []render.Field{
		{Key: "version", Value: v.Version},
		{Key: "contract", Value: v.Contract},
		{Key: "commit", Value: v.Commit},
	}
}

// VersionCommand returns the version command.
// It must not contact the simulation service.
func VersionCommand(_, commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		// TUI not supported for version command
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", 1)
		}

		return r.Render(VersionResponse{
			Version:  types.Version,
			Contract: types.ContractVersion,
			Commit:   commit,
		})
	}
}
