package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/pithecene-io/tagrelay/iox"
)

// DefaultBeaconBudget is the default number of beacons allowed in flight.
const DefaultBeaconBudget = 64

// StatusError is passed to pixel completions for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// HTTPPixelLoader loads pixels with GET requests on background goroutines.
type HTTPPixelLoader struct {
	client *http.Client
	wg     sync.WaitGroup
}

// NewHTTPPixelLoader creates a pixel loader. The client's cookie jar, if any,
// receives the cookies set by the tag server.
func NewHTTPPixelLoader(client *http.Client) *HTTPPixelLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPixelLoader{client: client}
}

// LoadPixel implements PixelLoader.
func (l *HTTPPixelLoader) LoadPixel(ctx context.Context, url string, done func(err error)) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		done(l.load(ctx, url))
	}()
}

func (l *HTTPPixelLoader) load(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create pixel request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("pixel request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Wait blocks until every started load has completed.
func (l *HTTPPixelLoader) Wait() {
	l.wg.Wait()
}

// HTTPBeaconer sends beacons as empty POST requests that outlive the caller's
// context. SendBeacon refuses new beacons once the in-flight budget is used up.
type HTTPBeaconer struct {
	client   *http.Client
	budget   int64
	inFlight atomic.Int64
	wg       sync.WaitGroup
}

// NewHTTPBeaconer creates a beaconer allowing budget beacons in flight.
// A budget <= 0 uses DefaultBeaconBudget.
func NewHTTPBeaconer(client *http.Client, budget int) *HTTPBeaconer {
	if client == nil {
		client = http.DefaultClient
	}
	if budget <= 0 {
		budget = DefaultBeaconBudget
	}
	return &HTTPBeaconer{client: client, budget: int64(budget)}
}

// SendBeacon implements Beaconer.
func (b *HTTPBeaconer) SendBeacon(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")

	if b.inFlight.Add(1) > b.budget {
		b.inFlight.Add(-1)
		return false
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.inFlight.Add(-1)

		resp, err := b.client.Do(req)
		if err != nil {
			return
		}
		defer iox.DiscardClose(resp.Body)
		_, _ = io.Copy(io.Discard, resp.Body)
	}()
	return true
}

// Wait blocks until every queued beacon has been sent.
func (b *HTTPBeaconer) Wait() {
	b.wg.Wait()
}

// Verify implementations satisfy the interfaces.
var (
	_ PixelLoader = (*HTTPPixelLoader)(nil)
	_ Beaconer    = (*HTTPBeaconer)(nil)
)
