// Package consent decides whether a transmission may be sent.
//
// The page's event queue is a sequence of loosely typed entries. Every entry
// that is a plain object is scanned for the consent key; the last matching
// value wins. Every key of every object entry is also copied into the
// outgoing payload, so the tag server sees the page's data-layer state.
package consent

import (
	"math"

	"github.com/pithecene-io/tagrelay/types"
)

// Source provides the entries of a named page queue.
type Source interface {
	Entries(queue string) []any
}

// Decision is the result of evaluating the consent gate.
type Decision struct {
	// Granted reports whether the transmission may proceed.
	Granted bool
	// Found reports whether any entry carried the consent key.
	Found bool
	// Value is the last value seen for the consent key.
	Value any
	// Payload is the request payload enriched with the queue's object entries.
	// The request's own payload is never modified.
	Payload map[string]any
}

// Evaluate scans entries for key and merges object entries into a copy of payload.
func Evaluate(entries []any, key string, payload map[string]any) Decision {
	merged := make(map[string]any, len(payload))
	for k, v := range payload {
		merged[k] = v
	}

	d := Decision{Payload: merged}
	for _, entry := range entries {
		obj, ok := asObject(entry)
		if !ok {
			continue
		}
		for k, v := range obj {
			merged[k] = v
			if k == key {
				d.Found = true
				d.Value = v
			}
		}
	}
	d.Granted = d.Found && Truthy(d.Value)
	return d
}

// Check evaluates the gate for req against the request's consent queue.
// AlwaysSend grants the transmission regardless of the queue's contents, but
// the payload is still enriched.
func Check(src Source, req types.TransmissionRequest) Decision {
	var entries []any
	if src != nil {
		entries = src.Entries(req.ConsentQueue)
	}
	d := Evaluate(entries, req.ConsentKey, req.Payload)
	if req.AlwaysSend {
		d.Granted = true
	}
	return d
}

// Truthy reports whether v counts as a granted consent value:
// false, 0, NaN, "" and nil do not; everything else does.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	case int:
		return x != 0
	case int64:
		return x != 0
	case int32:
		return x != 0
	case uint:
		return x != 0
	case uint64:
		return x != 0
	default:
		return true
	}
}

func asObject(entry any) (map[string]any, bool) {
	switch obj := entry.(type) {
	case map[string]any:
		return obj, obj != nil
	case types.Record:
		return obj, obj != nil
	default:
		return nil, false
	}
}
