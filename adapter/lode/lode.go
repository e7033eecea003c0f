// Package lode archives published records into a Lode dataset.
//
// Records are written as JSONL under a Hive layout partitioned by
// queue/event/day, on the local filesystem or S3.
package lode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/tagrelay/adapter"
)

// DefaultDataset is the default dataset ID.
const DefaultDataset = "tagrelay"

// RecordKindPublished discriminates archived publications.
const RecordKindPublished = "published"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"queue", "event", "day"}

// Config configures the archive adapter.
type Config struct {
	// Dataset is the Lode dataset ID (default "tagrelay").
	Dataset string
}

// Adapter writes each publication as one archive record.
type Adapter struct {
	dataset lode.Dataset
	config  Config
}

// NewFS creates an archive adapter storing under root on the local filesystem.
func NewFS(cfg Config, root string) (*Adapter, error) {
	if root == "" {
		return nil, errors.New("lode adapter requires a root directory")
	}
	return NewWithFactory(cfg, lode.NewFSFactory(root))
}

// NewWithFactory creates an archive adapter with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewWithFactory(cfg Config, factory lode.StoreFactory) (*Adapter, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	ds, err := NewDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return &Adapter{dataset: ds, config: cfg}, nil
}

// NewDataset opens a dataset with the archive's codec and layout.
func NewDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// Publish writes the publication as one archive record.
func (a *Adapter) Publish(ctx context.Context, pub *adapter.Publication) error {
	record := toArchiveRecord(pub)
	if _, err := a.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return fmt.Errorf("lode: %w", WrapWriteError(err, a.config.Dataset+"/"+pub.Queue))
	}
	return nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

// toArchiveRecord flattens a publication into the stored record shape.
func toArchiveRecord(pub *adapter.Publication) map[string]any {
	return map[string]any{
		"record_kind":      RecordKindPublished,
		"contract_version": pub.ContractVersion,
		"transmission_id":  pub.TransmissionID,
		"queue":            pub.Queue,
		"event":            partitionValue(pub.Event),
		"day":              deriveDay(pub.Timestamp),
		"timestamp":        pub.Timestamp,
		"record":           map[string]any(pub.Record),
	}
}

// deriveDay returns the UTC day (YYYY-MM-DD) of an RFC 3339 timestamp,
// or of the current time when ts does not parse.
func deriveDay(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02")
}

func partitionValue(v string) string {
	if v == "" {
		return "none"
	}
	return v
}

// Verify Adapter implements the adapter interface.
var _ adapter.Adapter = (*Adapter)(nil)
