package types

// Well-known record fields.
const (
	FieldStatus = "status"
	FieldEvent  = "event"
	FieldBody   = "body"
)

// Record is the accumulated event record of one transmission.
// Keys are merged in with last-write-wins semantics.
type Record map[string]any

// Merge copies every key of src into r, overwriting existing keys.
func (r Record) Merge(src map[string]any) {
	for k, v := range src {
		r[k] = v
	}
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Status returns the status field if present and numeric.
func (r Record) Status() (int, bool) {
	switch v := r[FieldStatus].(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Event returns the event field, or "" if absent.
func (r Record) Event() string {
	s, _ := r[FieldEvent].(string)
	return s
}
