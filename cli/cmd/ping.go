package cmd

import (
	"context"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crossflow/cli/render"
	"github.com/pithecene-io/crossflow/runtime"
)

// PingResponse is the response for the ping command.
type PingResponse struct {
	URL       string `json:"url"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
}

// Fields implements render.Detail.
func (p PingResponse) Fields() []render.Field {
	return []render.Field{
		{Key: "url", Value: p.URL},
		{Key: "status", Value: p.Status},
		{Key: "latency_ms", Value: strconv.FormatInt(p.LatencyMs, 10)},
	}
}

// PingCommand returns the ping command.
// It checks the simulation service health without running a simulation.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:   "ping",
		Usage:  "Check that the simulation service is reachable",
		Flags:  concatFlags(ReadOnlyFlags(), ConfigFlags(), ServiceFlags()),
		Action: pingAction,
	}
}

func pingAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for ping command
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for ping command", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}
	cl, err := newClient(cfg.Service)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now()
	status, err := cl.Ping(ctx)
	if err != nil {
		outcome := runtime.DetermineOutcome(0, err)
		return cli.Exit(err.Error(), runtime.ExitCode(outcome))
	}

	return r.Render(PingResponse{
		URL:       cl.URL(),
		Status:    status,
		LatencyMs: time.Now().Sub(started).Milliseconds(),
	})
}
