package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pithecene-io/tagrelay/types"
)

// frameBoundary separates frames.
var frameBoundary = []byte("\n\n")

// ErrMalformedFrame is returned by ParseFrame for frames without the
// event and data lines.
var ErrMalformedFrame = errors.New("malformed frame")

// ScanFrames is a bufio.SplitFunc that yields frames separated by a blank
// line, without the separator. At EOF the unterminated remainder is yielded
// as a final frame. Empty frames are yielded as empty tokens.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, frameBoundary); i >= 0 {
		return i + len(frameBoundary), data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	// Request more data.
	return 0, nil, nil
}

// ParseFrame decodes one frame. The first line must start with EventMarker
// and the second with DataMarker; the text after the data line's first
// colon is decoded as JSON.
func ParseFrame(frame string) (*types.ResponseEvent, error) {
	lines := strings.SplitN(frame, "\n", 3)
	if len(lines) < 2 {
		return nil, ErrMalformedFrame
	}
	eventLine := strings.TrimSuffix(lines[0], "\r")
	dataLine := strings.TrimSuffix(lines[1], "\r")
	if !strings.HasPrefix(eventLine, EventMarker) || !strings.HasPrefix(dataLine, DataMarker) {
		return nil, ErrMalformedFrame
	}

	_, payload, _ := strings.Cut(dataLine, ":")
	var ev types.ResponseEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, fmt.Errorf("decode frame data: %w", err)
	}
	return &ev, nil
}
