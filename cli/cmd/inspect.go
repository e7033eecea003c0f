package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tagrelay/cli/render"
	"github.com/pithecene-io/tagrelay/cli/tui"
)

// InspectCommand returns the inspect command.
// Inspect lists the published records (and transmission results) of a
// record log or Lode archive.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show published records from a record log or Lode archive",
		ArgsUsage: "<record-log>",
		Flags:     append(ReadOnlyFlags(), SourceFlags()...),
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
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

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectRecords, resp)
	}
	if r.Format() == render.FormatTable {
		return r.Render(resp.Records)
	}
	return r.Render(resp)
}
