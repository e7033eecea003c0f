package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pithecene-io/tagrelay/iox"
)

// DefaultChunkSize is the read size of the streaming driver.
const DefaultChunkSize = 4096

// StreamingDriver treats every read of the response body as a progress
// notification: frames are dispatched as soon as they are complete, before
// the response finishes. Frames are only dispatched for 2xx responses.
type StreamingDriver struct {
	Client *http.Client
	// ChunkSize is the read buffer size (default DefaultChunkSize).
	ChunkSize int
}

// Run implements Driver.
func (d *StreamingDriver) Run(ctx context.Context, s *Session) {
	httpReq, err := newRequest(ctx, s)
	if err != nil {
		s.fail(err)
		return
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		s.fail(fmt.Errorf("request failed: %w", err))
		return
	}
	defer iox.DiscardClose(resp.Body)

	size := d.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunk := make([]byte, size)

	var raw []byte
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			raw = append(raw, chunk[:n]...)
			s.progress(ctx, raw, resp.StatusCode)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.fail(fmt.Errorf("read response: %w", err))
			return
		}
	}

	s.complete(ctx, raw, resp.StatusCode, false)
}

var _ Driver = (*StreamingDriver)(nil)
