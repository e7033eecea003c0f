package cmd

import (
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	lodeadapter "github.com/pithecene-io/tagrelay/adapter/lode"
	"github.com/pithecene-io/tagrelay/cli/reader"
)

// readerFromContext builds the record reader selected by the source flags.
func readerFromContext(c *cli.Context) (reader.Reader, error) {
	backend := c.String("lode-backend")
	if backend == "" {
		if c.NArg() < 1 {
			return nil, errors.New("record log path required (or --lode-backend)")
		}
		return &reader.FrameLogReader{Path: c.Args().First()}, nil
	}

	path := c.String("lode-path")
	if path == "" {
		return nil, errors.New("--lode-path is required with --lode-backend")
	}

	var factory lode.StoreFactory
	switch backend {
	case "fs":
		factory = lode.NewFSFactory(path)
	case "s3":
		bucket, prefix := lodeadapter.ParseS3Path(path)
		f, err := lodeadapter.S3Factory(c.Context, lodeadapter.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       c.String("lode-s3-region"),
			Endpoint:     c.String("lode-s3-endpoint"),
			UsePathStyle: c.Bool("lode-s3-path-style"),
		})
		if err != nil {
			return nil, err
		}
		factory = f
	default:
		return nil, fmt.Errorf("unknown lode-backend: %s (must be fs or s3)", backend)
	}

	ds, err := lodeadapter.NewDataset(c.String("lode-dataset"), factory)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &reader.LodeReader{Dataset: ds, Name: backend + ":" + path}, nil
}

func filterFromContext(c *cli.Context) reader.Filter {
	return reader.Filter{
		Queue:          c.String("queue"),
		Event:          c.String("event"),
		TransmissionID: c.String("transmission-id"),
	}
}
