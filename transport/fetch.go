package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pithecene-io/tagrelay/iox"
)

// FetchDriver issues the request and processes the body once, after it has
// been read completely. Frames are dispatched whatever the HTTP status.
type FetchDriver struct {
	Client *http.Client
}

// Run implements Driver.
func (d *FetchDriver) Run(ctx context.Context, s *Session) {
	httpReq, err := newRequest(ctx, s)
	if err != nil {
		s.fail(err)
		return
	}

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		s.fail(fmt.Errorf("request failed: %w", err))
		return
	}
	defer iox.DiscardClose(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		s.fail(fmt.Errorf("read response: %w", err))
		return
	}

	s.complete(ctx, raw, resp.StatusCode, true)
}

var _ Driver = (*FetchDriver)(nil)
