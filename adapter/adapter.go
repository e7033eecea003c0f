// Package adapter defines the publish boundary of the relay.
//
// An Adapter receives the merged event record of a transmission exactly once,
// addressed to the transmission's target queue. The in-page data layer is the
// canonical target; other adapters forward or archive the same publication.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/tagrelay/types"
)

// ContractVersion is the version of the Publication shape.
const ContractVersion = "1"

// Publication is the payload handed to adapters when a transmission publishes.
type Publication struct {
	ContractVersion string       `json:"contract_version" msgpack:"contract_version"`
	TransmissionID  string       `json:"transmission_id" msgpack:"transmission_id"`
	Queue           string       `json:"queue" msgpack:"queue"`
	Event           string       `json:"event" msgpack:"event"`
	Record          types.Record `json:"record" msgpack:"record"`
	Timestamp       string       `json:"timestamp" msgpack:"timestamp"` // RFC 3339
}

// NewPublication builds a publication for record, stamping it with the
// current time.
func NewPublication(transmissionID, queue string, record types.Record) *Publication {
	return &Publication{
		ContractVersion: ContractVersion,
		TransmissionID:  transmissionID,
		Queue:           queue,
		Event:           record.Event(),
		Record:          record,
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Adapter publishes records to a downstream system.
type Adapter interface {
	// Publish appends the publication's record to its queue.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, pub *Publication) error

	// Close releases adapter resources.
	Close() error
}
