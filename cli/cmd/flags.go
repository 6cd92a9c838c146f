// Package cmd provides CLI commands for the crossflow binary.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

// Shared output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables the Bubble Tea live dashboard.
	// Only valid for commands that replay (run, replay).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show the live replay dashboard (run, replay only)",
	}
)

// Shared configuration flags.
var (
	// ConfigFlag points at a crossflow.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to crossflow.yaml config file",
		EnvVars: []string{"CROSSFLOW_CONFIG"},
	}

	// EnvFileFlag points at a dotenv file loaded before the config file.
	EnvFileFlag = &cli.StringFlag{
		Name:  "env-file",
		Usage: "Path to a .env file loaded before the config (existing env vars win)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// ConfigFlags returns the flags that locate configuration.
func ConfigFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		EnvFileFlag,
	}
}

// ServiceFlags returns the simulation service flags.
func ServiceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "service-url",
			Usage:   "Simulation service endpoint",
			EnvVars: []string{"CROSSFLOW_SERVICE_URL"},
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Hard upper bound on the simulation request",
		},
		&cli.StringSliceFlag{
			Name:  "service-header",
			Usage: "Service request header as key=value (repeatable)",
		},
	}
}

// ScenarioFlags returns the scenario override flags.
func ScenarioFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "mode",
			Usage: "Request payload mode: basic or extended",
		},
		&cli.IntFlag{
			Name:  "cycles",
			Usage: "Total cycles to simulate",
		},
		&cli.Float64Flag{
			Name:  "avg-service-time",
			Usage: "Average per-vehicle crossing time in seconds",
		},
		&cli.IntFlag{
			Name:  "lanes-ns",
			Usage: "Lane count on the north-south axis",
		},
		&cli.IntFlag{
			Name:  "lanes-ew",
			Usage: "Lane count on the east-west axis",
		},
	}
}

// ReplayFlags returns the replay cadence flags.
func ReplayFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "Delay before each replay tick",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Entries per track emitted per tick",
		},
	}
}

// SideEffectFlags returns the adapter, stream and archive flags.
func SideEffectFlags() []cli.Flag {
	return concatFlags([]cli.Flag{
		// Adapter flags
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Completion adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Adapter endpoint URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-publish timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retry attempts",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
		// Stream flags
		&cli.StringFlag{
			Name:  "listen",
			Usage: "Serve the websocket feed at ADDR/ws (e.g. :8090)",
		},
	}, ArchiveFlags())
}

// ArchiveFlags returns the run archive flags.
func ArchiveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "archive",
			Usage: "Run archive backend: fs, s3 or memory",
		},
		&cli.StringFlag{
			Name:  "archive-path",
			Usage: "Archive directory (fs) or bucket/prefix (s3)",
		},
		&cli.StringFlag{
			Name:  "archive-dataset",
			Usage: "Archive dataset ID",
		},
		&cli.StringFlag{
			Name:  "archive-s3-region",
			Usage: "AWS region for the s3 archive",
		},
		&cli.StringFlag{
			Name:  "archive-s3-endpoint",
			Usage: "Custom S3 endpoint (MinIO, R2)",
		},
		&cli.BoolFlag{
			Name:  "archive-s3-path-style",
			Usage: "Use path-style S3 addressing",
		},
	}
}

// LogFlags returns the logging flags.
func LogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "info",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "Write logs to FILE instead of stderr",
		},
	}
}

func concatFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// isStdoutTTY returns true if stdout is a TTY.
func isStdoutTTY() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
