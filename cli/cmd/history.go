package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crossflow/cli/render"
	"github.com/pithecene-io/crossflow/lode"
	"github.com/pithecene-io/crossflow/runtime"
)

// HistoryRow is one archived run in the history listing.
type HistoryRow struct {
	SessionID   string  `json:"session_id"`
	Generation  uint64  `json:"generation"`
	Outcome     string  `json:"outcome"`
	GainPercent float64 `json:"gain_percent"`
	PointsSaved float64 `json:"points_saved"`
	Entries     int     `json:"entries"`
	FinishedAt  string  `json:"finished_at"`
}

// History is the history listing, newest first.
type History []HistoryRow

// Columns implements render.Listing.
func (History) Columns() []string {
	return []string{"session_id", "generation", "outcome", "gain_percent", "points_saved", "entries", "finished_at"}
}

// Rows implements render.Listing.
func (h History) Rows() [][]string {
	rows := make([][]string, 0, len(h))
	for _, row := range h {
		rows = append(rows, []string{
			row.SessionID,
			strconv.FormatUint(row.Generation, 10),
			row.Outcome,
			fmt.Sprintf("%+.2f%%", row.GainPercent),
			fmt.Sprintf("%.2f", row.PointsSaved),
			strconv.Itoa(row.Entries),
			row.FinishedAt,
		})
	}
	return rows
}

// HistoryCommand returns the history command.
// It lists archived run reports, newest first.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List archived run reports",
		Flags: concatFlags(
			ReadOnlyFlags(),
			ConfigFlags(),
			ArchiveFlags(),
			[]cli.Flag{
				&cli.StringFlag{
					Name:  "session",
					Usage: "Only list reports for this session ID",
				},
				&cli.IntFlag{
					Name:  "limit",
					Usage: "Maximum number of reports (0 for all)",
					Value: 10,
				},
				&cli.BoolFlag{
					Name:  "latest",
					Usage: "Show only the newest report in full",
				},
			},
		),
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for history command
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for history command", 1)
	}
	if c.Int("limit") < 0 {
		return cli.Exit("--limit must be >= 0", runtime.ExitCodeInvalidConfig)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}
	switch cfg.Archive.Backend {
	case "":
		return cli.Exit("history requires an archive (--archive fs|s3)", runtime.ExitCodeInvalidConfig)
	case lode.BackendMemory:
		return cli.Exit("history requires a persistent archive; memory archives do not outlive a run", runtime.ExitCodeInvalidConfig)
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	archive, err := openArchive(ctx, cfg.Archive)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
	}
	defer func() { _ = archive.Close() }()

	session := c.String("session")
	if c.Bool("latest") {
		report, err := archive.Latest(ctx, session)
		if err != nil {
			return historyError(err)
		}
		return r.Render(report)
	}

	reports, err := archive.Recent(ctx, session, c.Int("limit"))
	if err != nil {
		return historyError(err)
	}
	rows := make(History, 0, len(reports))
	for _, rep := range reports {
		rows = append(rows, historyRow(rep))
	}
	return r.Render(rows)
}

func historyRow(rep *runtime.Report) HistoryRow {
	return HistoryRow{
		SessionID:   rep.SessionID,
		Generation:  rep.Generation,
		Outcome:     string(rep.Outcome),
		GainPercent: rep.GainPercent,
		PointsSaved: rep.PointsSaved,
		Entries:     rep.Entries,
		FinishedAt:  rep.FinishedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func historyError(err error) error {
	if errors.Is(err, lode.ErrNoReports) {
		return cli.Exit("no archived reports found", 1)
	}
	return cli.Exit(fmt.Sprintf("failed to read archive: %v", err), 1)
}
