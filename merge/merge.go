// Package merge applies decoded response events to a transmission's
// accumulated event record.
package merge

import (
	"context"

	"github.com/pithecene-io/tagrelay/log"
	"github.com/pithecene-io/tagrelay/types"
)

// Emitter fires the side effects named by a response event.
// *dispatch.Dispatcher implements it.
type Emitter interface {
	EmitPixel(ctx context.Context, url string)
	EmitBeacon(ctx context.Context, url string)
}

// Accumulator owns the accumulated event record of one transmission.
// It is not safe for concurrent use; callers serialize access.
type Accumulator struct {
	emitter Emitter
	logger  *log.Logger
	record  types.Record
	applied int
}

// New creates an empty accumulator. A nil logger disables logging.
func New(emitter Emitter, logger *log.Logger) *Accumulator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Accumulator{
		emitter: emitter,
		logger:  logger,
		record:  types.Record{},
	}
}

// ApplyEvent fires the event's pixels, then its beacons, then merges its
// response fragment: every key of the decoded body overwrites the record and
// status is set to the fragment's status code. A nil event is a no-op.
func (a *Accumulator) ApplyEvent(ctx context.Context, ev *types.ResponseEvent) {
	if ev == nil {
		return
	}
	a.applied++

	for _, url := range ev.SendPixel {
		a.emitter.EmitPixel(ctx, url)
	}
	for _, url := range ev.SendBeacon {
		a.emitter.EmitBeacon(ctx, url)
	}

	if ev.Response == nil {
		return
	}
	fields, ok := DecodeBody(ev.Response.Body)
	if !ok {
		a.logger.Debug("response body is not JSON, wrapping", map[string]any{
			"status_code": ev.Response.StatusCode,
		})
	}
	a.record.Merge(fields)
	a.record[types.FieldStatus] = ev.Response.StatusCode
}

// ApplyLegacy replaces the record with a legacy (non-streamed) response body:
// the whole text decoded as a JSON object, or wrapped as {"body": text}, with
// status set to the HTTP status.
func (a *Accumulator) ApplyLegacy(text string, httpStatus int) {
	fields, ok := ParseJSONResponse(text)
	if !ok && text != "" {
		a.logger.Debug("legacy response is not a JSON object, wrapping", map[string]any{
			"status_code": httpStatus,
			"length":      len(text),
		})
	}
	a.record = types.Record(fields)
	a.record[types.FieldStatus] = httpStatus
}

// Applied returns the number of events applied so far.
func (a *Accumulator) Applied() int {
	return a.applied
}

// Record returns a copy of the accumulated record.
func (a *Accumulator) Record() types.Record {
	return a.record.Clone()
}
