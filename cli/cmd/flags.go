// Package cmd provides CLI commands for the tagrelay binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
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

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for inspect and stats.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
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

// SourceFlags select where read-only commands load records from: a
// framelog file given as the argument, or a Lode archive.
func SourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "lode-backend",
			Usage: "Read a Lode archive instead of a record log: fs or s3",
		},
		&cli.StringFlag{
			Name:  "lode-path",
			Usage: "Lode storage path (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "lode-dataset",
			Usage: "Lode dataset ID",
			Value: "tagrelay",
		},
		&cli.StringFlag{
			Name:  "lode-s3-region",
			Usage: "AWS region for S3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "lode-s3-endpoint",
			Usage: "Custom S3 endpoint for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "lode-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
		&cli.StringFlag{
			Name:  "queue",
			Usage: "Only records published to this queue",
		},
		&cli.StringFlag{
			Name:  "event",
			Usage: "Only records with this event name",
		},
		&cli.StringFlag{
			Name:  "transmission-id",
			Usage: "Only records of this transmission",
		},
	}
}
