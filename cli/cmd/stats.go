package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tagrelay/cli/reader"
	"github.com/pithecene-io/tagrelay/cli/render"
	"github.com/pithecene-io/tagrelay/cli/tui"
)

// StatsCommand returns the stats command.
// Stats aggregates the records inspect would show.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Aggregate published records by queue, event and outcome",
		ArgsUsage: "<record-log>",
		Flags:     append(ReadOnlyFlags(), SourceFlags()...),
		Action:    statsAction,
	}
}

func statsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	src, err := readerFromContext(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	resp, err := src.Records(c.Context, filterFromContext(c))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	stats := reader.Stats(resp)
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsRecords, stats)
	}
	return r.Render(stats)
}
