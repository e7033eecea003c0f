// Package stream decodes the tag server's response: it classifies the body as
// a legacy JSON response or an event stream, and incrementally frames, decodes
// and dispatches event-stream records.
//
// The event-stream wire format is a sequence of frames separated by a blank
// line. Each frame has exactly two lines:
//
//	event: message
//	data: {"send_pixel":[...],"send_beacon":[...],"response":{...}}
package stream

// Wire markers.
const (
	// EventMarker starts the first line of every frame.
	EventMarker = "event: message"
	// DataMarker starts the second line of every frame.
	DataMarker = "data:"
	// StreamPrefix is the text an event-stream response starts with.
	StreamPrefix = EventMarker + "\n" + "data: "
)

// Protocol is the response protocol decided for a body.
type Protocol int

// Protocols.
const (
	// ProtocolUndecided means the text received so far is a proper prefix of
	// StreamPrefix. More text is needed.
	ProtocolUndecided Protocol = iota
	// ProtocolLegacy is a plain response body, merged as a whole.
	ProtocolLegacy
	// ProtocolStreamed is an event stream of frames.
	ProtocolStreamed
)

// String returns the protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtocolLegacy:
		return "legacy"
	case ProtocolStreamed:
		return "streamed"
	default:
		return "undecided"
	}
}

// Classify decides the protocol of a (possibly partial) response body.
// At final completion anything other than ProtocolStreamed is legacy.
func Classify(text []byte) Protocol {
	n := min(len(text), len(StreamPrefix))
	if string(text[:n]) != StreamPrefix[:n] {
		return ProtocolLegacy
	}
	if n < len(StreamPrefix) {
		return ProtocolUndecided
	}
	return ProtocolStreamed
}
