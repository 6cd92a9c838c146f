package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/crossflow/adapter"
	redisadapter "github.com/pithecene-io/crossflow/adapter/redis"
	"github.com/pithecene-io/crossflow/adapter/webhook"
	"github.com/pithecene-io/crossflow/cli/config"
	"github.com/pithecene-io/crossflow/client"
	"github.com/pithecene-io/crossflow/lode"
	"github.com/pithecene-io/crossflow/log"
)

// newLogger builds the session logger from --log-level and --log-file.
// In TUI mode without a log file, logging is discarded so it cannot
// corrupt the dashboard. The returned closer releases the log file.
func newLogger(c *cli.Context, sessionID string, tuiMode bool) (*log.Logger, func(), error) {
	level, err := zapcore.ParseLevel(c.String("log-level"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level: %w", err)
	}

	path := c.String("log-file")
	if path == "" {
		if tuiMode {
			return log.NewNop(), func() {}, nil
		}
		return log.NewLoggerAtLevel(sessionID, level), func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open log file: %w", err)
	}
	logger := log.NewLoggerAtLevel(sessionID, level).WithOutput(f)
	return logger, func() { _ = f.Close() }, nil
}

// newClient builds the simulation client from the service section.
func newClient(cfg config.ServiceConfig) (*client.Client, error) {
	return client.New(client.Config{
		URL:     cfg.URL,
		Timeout: cfg.Timeout.Duration,
		Headers: cfg.Headers,
	})
}

// buildAdapter creates the configured completion adapter, or nil when none
// is configured.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "webhook":
		if cfg.URL == "" {
			return nil, fmt.Errorf("--adapter-url is required when --adapter=webhook")
		}
		retries := webhook.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		if cfg.URL == "" {
			return nil, fmt.Errorf("--adapter-url is required when --adapter=redis")
		}
		retries := redisadapter.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return redisadapter.New(redisadapter.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", cfg.Type)
	}
}

// archiveConfig maps the archive section onto a lode.Config.
func archiveConfig(cfg config.ArchiveConfig) lode.Config {
	return lode.Config{
		Backend: cfg.Backend,
		Dataset: cfg.Dataset,
		Path:    cfg.Path,
		S3: lode.S3Config{
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		},
	}
}

// openArchive opens the configured archive, or returns nil when archiving
// is disabled.
func openArchive(ctx context.Context, cfg config.ArchiveConfig) (*lode.Archive, error) {
	if cfg.Backend == "" {
		return nil, nil
	}
	archive, err := lode.Open(ctx, archiveConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return archive, nil
}
