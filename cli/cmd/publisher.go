package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/tagrelay/adapter"
	"github.com/pithecene-io/tagrelay/adapter/datalayer"
	"github.com/pithecene-io/tagrelay/adapter/framelog"
	lodeadapter "github.com/pithecene-io/tagrelay/adapter/lode"
	"github.com/pithecene-io/tagrelay/adapter/multi"
	redisadapter "github.com/pithecene-io/tagrelay/adapter/redis"
	"github.com/pithecene-io/tagrelay/adapter/webhook"
	"github.com/pithecene-io/tagrelay/log"
)

// publisherKinds lists the accepted --publisher values.
var publisherKinds = []string{"none", "webhook", "redis", "lode"}

// publisherChoice holds the resolved publisher configuration.
type publisherChoice struct {
	kind      string // none, webhook, redis, lode
	url       string
	channel   string
	keyPrefix string
	maxLen    int64
	headers   map[string]string
	timeout   time.Duration
	retries   *int

	lodeBackend   string // fs or s3
	lodePath      string
	lodeDataset   string
	lodeRegion    string
	lodeEndpoint  string
	lodePathStyle bool

	recordLog string
}

// buildPublisher assembles the publish chain: the data layer is always the
// primary target; the configured publisher and the record log follow as
// secondaries. The returned framelog writer is nil without --record-log.
func buildPublisher(ctx context.Context, layer *datalayer.Layer, choice publisherChoice, logger *log.Logger) (adapter.Adapter, *framelog.Writer, error) {
	targets := []multi.Named{{Name: "datalayer", Adapter: layer}}

	secondary, err := buildSecondary(ctx, choice)
	if err != nil {
		return nil, nil, err
	}
	if secondary != nil {
		targets = append(targets, multi.Named{Name: choice.kind, Adapter: secondary})
	}

	var records *framelog.Writer
	if choice.recordLog != "" {
		records, err = framelog.Open(choice.recordLog)
		if err != nil {
			if secondary != nil {
				_ = secondary.Close()
			}
			return nil, nil, err
		}
		targets = append(targets, multi.Named{Name: "framelog", Adapter: records})
	}

	m, err := multi.New(targets, multi.WithErrorHandler(func(name string, err error) {
		logger.Warn("secondary publisher failed", map[string]any{
			"publisher": name,
			"error":     err.Error(),
		})
	}))
	if err != nil {
		return nil, nil, err
	}
	return m, records, nil
}

func buildSecondary(ctx context.Context, choice publisherChoice) (adapter.Adapter, error) {
	switch choice.kind {
	case "", "none":
		return nil, nil
	case "webhook":
		cfg := webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: webhook.DefaultRetries,
		}
		if choice.retries != nil {
			cfg.Retries = *choice.retries
		}
		return webhook.New(cfg)
	case "redis":
		cfg := redisadapter.Config{
			URL:       choice.url,
			Channel:   choice.channel,
			KeyPrefix: choice.keyPrefix,
			MaxLen:    choice.maxLen,
			Timeout:   choice.timeout,
			Retries:   redisadapter.DefaultRetries,
		}
		if choice.retries != nil {
			cfg.Retries = *choice.retries
		}
		return redisadapter.New(cfg)
	case "lode":
		return buildLodePublisher(ctx, choice)
	default:
		return nil, fmt.Errorf("unknown publisher: %s (must be none, webhook, redis or lode)", choice.kind)
	}
}

func buildLodePublisher(ctx context.Context, choice publisherChoice) (adapter.Adapter, error) {
	cfg := lodeadapter.Config{Dataset: choice.lodeDataset}
	switch choice.lodeBackend {
	case "fs", "":
		return lodeadapter.NewFS(cfg, choice.lodePath)
	case "s3":
		bucket, prefix := lodeadapter.ParseS3Path(choice.lodePath)
		return lodeadapter.NewS3(ctx, cfg, lodeadapter.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       choice.lodeRegion,
			Endpoint:     choice.lodeEndpoint,
			UsePathStyle: choice.lodePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown lode-backend: %s (must be fs or s3)", choice.lodeBackend)
	}
}
