package types

import (
	"bytes"
	"encoding/json"
)

// ResponseEvent is the JSON payload of one stream frame.
// Decoding is tolerant: fields with an unexpected shape are treated as absent.
type ResponseEvent struct {
	// SendPixel lists URLs to request as 1x1 images.
	SendPixel []string
	// SendBeacon lists URLs to send as beacons.
	SendBeacon []string
	// Response carries a response fragment to merge, nil if absent.
	Response *ResponsePayload
}

// ResponsePayload is the response fragment carried by a frame.
type ResponsePayload struct {
	// StatusCode is the fragment status, 0 when absent.
	StatusCode int
	// Body is the raw body: a JSON string holding encoded JSON, or an object.
	Body json.RawMessage
}

// UnmarshalJSON decodes a frame payload. Only a non-object top level fails.
func (e *ResponseEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		SendPixel  json.RawMessage `json:"send_pixel"`
		SendBeacon json.RawMessage `json:"send_beacon"`
		Response   json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.SendPixel = decodeURLList(raw.SendPixel)
	e.SendBeacon = decodeURLList(raw.SendBeacon)
	e.Response = decodeResponsePayload(raw.Response)
	return nil
}

// IsEmpty reports whether the event carries nothing to apply.
func (e *ResponseEvent) IsEmpty() bool {
	return e == nil || (len(e.SendPixel) == 0 && len(e.SendBeacon) == 0 && e.Response == nil)
}

// decodeURLList keeps the string elements of a JSON array.
// Anything that is not an array yields nil.
func decodeURLList(raw json.RawMessage) []string {
	if !hasLeadingByte(raw, '[') {
		return nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	urls := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			urls = append(urls, s)
		}
	}
	return urls
}

func decodeResponsePayload(raw json.RawMessage) *ResponsePayload {
	if !hasLeadingByte(raw, '{') {
		return nil
	}
	var fields struct {
		StatusCode json.RawMessage `json:"status_code"`
		Body       json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	payload := &ResponsePayload{Body: fields.Body}
	var status float64
	if err := json.Unmarshal(fields.StatusCode, &status); err == nil {
		payload.StatusCode = int(status)
	}
	return payload
}

func hasLeadingByte(raw json.RawMessage, b byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == b
}
