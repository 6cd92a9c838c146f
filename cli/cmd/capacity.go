package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crossflow/capacity"
	"github.com/pithecene-io/crossflow/cli/render"
	"github.com/pithecene-io/crossflow/cli/tui"
	"github.com/pithecene-io/crossflow/runtime"
)

// CapacityCommand returns the capacity command.
// It evaluates the configured scenario without contacting the service.
func CapacityCommand() *cli.Command {
	return &cli.Command{
		Name:   "capacity",
		Usage:  "Estimate intersection saturation for the configured scenario",
		Flags:  concatFlags(ReadOnlyFlags(), ConfigFlags(), ScenarioFlags()),
		Action: capacityAction,
	}
}

func capacityAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}
	sim, err := cfg.ToSimConfig()
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}

	estimate := capacity.Evaluate(sim.Capacity())

	// The capacity panel is static; --tui renders it styled instead of tabular.
	if c.Bool("tui") {
		fmt.Fprintln(c.App.Writer, tui.RenderCapacity(estimate))
		return nil
	}
	return r.Render(estimate)
}
