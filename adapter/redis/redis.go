// Package redis mirrors the page queues into Redis.
//
// Every publication is appended (RPUSH) to a list named after its target
// queue and announced on a pub/sub channel, in one MULTI/EXEC transaction.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/tagrelay/adapter"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "tagrelay:published"

// DefaultKeyPrefix prefixes the list key of every queue.
const DefaultKeyPrefix = "tagrelay:queue:"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: tagrelay:published).
	Channel string
	// KeyPrefix prefixes queue list keys (default: tagrelay:queue:).
	KeyPrefix string
	// MaxLen trims each queue list to its newest MaxLen records. Zero keeps all.
	MaxLen int64
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// Adapter appends publications to Redis lists.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis adapter from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.MaxLen < 0 {
		return nil, fmt.Errorf("max_len must be >= 0, got %d", cfg.MaxLen)
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// QueueKey returns the list key holding queue's records.
func (a *Adapter) QueueKey(queue string) string {
	return a.config.KeyPrefix + queue
}

// Publish appends the record to the queue's list and announces the full
// publication on the channel.
func (a *Adapter) Publish(ctx context.Context, pub *adapter.Publication) error {
	record, err := json.Marshal(pub.Record)
	if err != nil {
		return fmt.Errorf("redis: marshal record: %w", err)
	}
	notice, err := json.Marshal(pub)
	if err != nil {
		return fmt.Errorf("redis: marshal publication: %w", err)
	}

	key := a.QueueKey(pub.Queue)
	err = adapter.Retry(ctx, a.config.Retries, nil, func(ctx context.Context) error {
		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()

		_, err := a.client.TxPipelined(publishCtx, func(pipe goredis.Pipeliner) error {
			pipe.RPush(publishCtx, key, record)
			if a.config.MaxLen > 0 {
				pipe.LTrim(publishCtx, key, -a.config.MaxLen, -1)
			}
			pipe.Publish(publishCtx, a.config.Channel, notice)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

// Verify Adapter implements the adapter interface.
var _ adapter.Adapter = (*Adapter)(nil)
