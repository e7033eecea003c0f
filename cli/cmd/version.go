package cmd

import (
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tagrelay/adapter"
	"github.com/pithecene-io/tagrelay/cli/render"
	"github.com/pithecene-io/tagrelay/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version         string   `json:"version" yaml:"version"`
	Commit          string   `json:"commit" yaml:"commit"`
	ContractVersion string   `json:"contract_version" yaml:"contract_version"`
	GoVersion       string   `json:"go_version" yaml:"go_version"`
	Transports      []string `json:"transports" yaml:"transports"`
	Publishers      []string `json:"publishers" yaml:"publishers"`
}

// VersionCommand returns the version command.
// It never contacts a tag server.
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

		resp := VersionResponse{
			Version:         types.Version,
			Commit:          commit,
			ContractVersion: adapter.ContractVersion,
			GoVersion:       runtime.Version(),
			Transports:      []string{string(types.TransportFetch), string(types.TransportStreaming)},
			Publishers:      publisherKinds,
		}

		return r.Render(resp)
	}
}
