package lode

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// Filter selects archived records. Empty fields match everything.
type Filter struct {
	Queue          string
	Event          string
	Day            string
	TransmissionID string
}

// Query reads the archived records matching f, oldest first.
func Query(ctx context.Context, ds lode.Dataset, f Filter) ([]map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "snapshots")
	}

	var out []map[string]any
	for _, snap := range snapshots {
		if !snapshotMatches(snap, "queue", f.Queue) ||
			!snapshotMatches(snap, "event", f.Event) ||
			!snapshotMatches(snap, "day", f.Day) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("snapshot/%s", snap.ID))
		}

		// Manifest paths are a coarse pre-filter; record fields are authoritative.
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindPublished {
				continue
			}
			if !fieldMatches(record, "queue", f.Queue) ||
				!fieldMatches(record, "event", f.Event) ||
				!fieldMatches(record, "day", f.Day) ||
				!fieldMatches(record, "transmission_id", f.TransmissionID) {
				continue
			}
			out = append(out, record)
		}
	}
	return out, nil
}

// snapshotMatches reports whether any file of snap lies in the key=value
// partition. An empty value matches every snapshot.
func snapshotMatches(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks for an exact key=value path segment, so that
// queue=dataLayer does not match queue=dataLayer2. Values are path-escaped
// on write.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + url.PathEscape(value)
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

func fieldMatches(record map[string]any, key, value string) bool {
	if value == "" {
		return true
	}
	s, _ := record[key].(string)
	return s == value
}
