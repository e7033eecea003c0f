package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pithecene-io/tagrelay/types"
)

// Driver performs the network call of a transmission and reports the
// response to the session. Run returns once the response has completed or
// failed; a publish deferred on pending cookies may still follow.
type Driver interface {
	Run(ctx context.Context, s *Session)
}

// NewDriver returns the driver for kind. client carries the shared cookie
// jar; nil uses http.DefaultClient.
func NewDriver(kind types.TransportKind, client *http.Client) (Driver, error) {
	if client == nil {
		client = http.DefaultClient
	}
	switch kind {
	case types.TransportFetch, "":
		return &FetchDriver{Client: client}, nil
	case types.TransportStreaming:
		return &StreamingDriver{Client: client}, nil
	default:
		return nil, fmt.Errorf("unknown transport: %q", kind)
	}
}

// newRequest builds the POST carrying the JSON-serialized payload.
// The body is sent as text/plain to keep the request CORS-simple.
func newRequest(ctx context.Context, s *Session) (*http.Request, error) {
	body, err := json.Marshal(s.Payload())
	if err != nil {
		return nil, fmt.Errorf("serialize payload: %w", err)
	}

	req := s.Request()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/plain")
	return httpReq, nil
}
