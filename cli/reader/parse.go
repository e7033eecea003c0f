package reader

import (
	"errors"

	"github.com/pithecene-io/tagrelay/types"
)

// ParseArchiveRecord converts a Lode archive record (map[string]any) to a
// RecordRow. Numeric status values may arrive as int or float64 (JSON
// round-trip).
func ParseArchiveRecord(record map[string]any) (*RecordRow, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	row := &RecordRow{
		TransmissionID: toString(record["transmission_id"]),
		Queue:          toString(record["queue"]),
		Event:          toString(record["event"]),
		Timestamp:      toString(record["timestamp"]),
	}

	switch inner := record["record"].(type) {
	case map[string]any:
		row.Record = types.Record(inner)
	case types.Record:
		row.Record = inner
	default:
		return nil, errors.New("archive record missing required field: record")
	}
	row.Status = recordStatus(row.Record)

	// The write path always populates these; missing values indicate
	// data corruption or a foreign record.
	if row.TransmissionID == "" {
		return nil, errors.New("archive record missing required field: transmission_id")
	}
	if row.Queue == "" {
		return nil, errors.New("archive record missing required field: queue")
	}
	if row.Timestamp == "" {
		return nil, errors.New("archive record missing required field: timestamp")
	}

	return row, nil
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// recordStatus returns the record's status field, 0 when absent.
func recordStatus(r types.Record) int {
	status, _ := r.Status()
	return status
}
