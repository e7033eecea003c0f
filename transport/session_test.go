package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/tagrelay/adapter"
	"github.com/pithecene-io/tagrelay/dispatch"
	"github.com/pithecene-io/tagrelay/types"
)

// recordingPublisher collects publications.
type recordingPublisher struct {
	mu   sync.Mutex
	pubs []*adapter.Publication
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, pub *adapter.Publication) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.pubs = append(p.pubs, pub)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []*adapter.Publication {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*adapter.Publication(nil), p.pubs...)
}

// heldPixels holds pixel completions until the test fires them.
type heldPixels struct {
	mu   sync.Mutex
	urls []string
	done []func(error)
}

func (h *heldPixels) LoadPixel(_ context.Context, url string, done func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.urls = append(h.urls, url)
	h.done = append(h.done, done)
}

func (h *heldPixels) complete(i int, err error) {
	h.mu.Lock()
	done := h.done[i]
	h.mu.Unlock()
	done(err)
}

func (h *heldPixels) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.urls)
}

// instantPixels completes every load synchronously.
type instantPixels struct{}

func (instantPixels) LoadPixel(_ context.Context, _ string, done func(error)) { done(nil) }

func newTestRequest(baseURL string) types.TransmissionRequest {
	req := types.NewTransmissionRequest(baseURL, "/data", map[string]any{"foo": 1})
	req.AlwaysSend = true
	return req
}

func newTestSession(t *testing.T, req types.TransmissionRequest, pixels dispatch.PixelLoader, pub adapter.Adapter) *Session {
	t.Helper()
	return NewSession(t.Context(), SessionConfig{
		TransmissionID: "tx-test",
		Request:        req,
		Publisher:      pub,
		Pixels:         pixels,
	})
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("transmission did not finish, outcome %v", s.Result().Outcome)
	}
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

const twoResponseFrames = "event: message\ndata: {\"response\":{\"status_code\":200,\"body\":\"{\\\"a\\\":1}\"}}\n\n" +
	"event: message\ndata: {\"response\":{\"status_code\":201,\"body\":\"{\\\"b\\\":2}\"}}\n\n"

func TestFetch_LegacyResponse(t *testing.T) {
	var gotContentType string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/data" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"bar":2}`)
	}))
	defer ts.Close()

	pub := &recordingPublisher{}
	s := newTestSession(t, newTestRequest(ts.URL), &heldPixels{}, pub)
	(&FetchDriver{Client: ts.Client()}).Run(t.Context(), s)
	waitDone(t, s)

	if gotContentType != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", gotContentType)
	}
	if gotBody["foo"] != float64(1) {
		t.Errorf("request body = %v, want payload", gotBody)
	}

	pubs := pub.published()
	if len(pubs) != 1 {
		t.Fatalf("published %d records, want 1", len(pubs))
	}
	want := types.Record{"bar": float64(2), "status": 200, "event": types.DefaultEventName}
	if !reflect.DeepEqual(pubs[0].Record, want) {
		t.Errorf("record = %v, want %v", pubs[0].Record, want)
	}
	if pubs[0].Queue != types.DefaultQueueName || pubs[0].TransmissionID != "tx-test" {
		t.Errorf("publication = %+v", pubs[0])
	}

	res := s.Result()
	if res.Outcome.Status != types.OutcomePublished || res.Protocol != "legacy" || res.HTTPStatus != 200 {
		t.Errorf("result = %+v", res)
	}
}

func TestFetch_StreamedResponse(t *testing.T) {
	ts := httptest.NewServer(respond(http.StatusOK, twoResponseFrames))
	defer ts.Close()

	req := newTestRequest(ts.URL)
	req.WaitForCookies = false
	pub := &recordingPublisher{}
	s := newTestSession(t, req, &heldPixels{}, pub)
	(&FetchDriver{Client: ts.Client()}).Run(t.Context(), s)
	waitDone(t, s)

	pubs := pub.published()
	if len(pubs) != 1 {
		t.Fatalf("published %d records, want 1", len(pubs))
	}
	want := types.Record{"a": float64(1), "b": float64(2), "status": 201, "event": types.DefaultEventName}
	if !reflect.DeepEqual(pubs[0].Record, want) {
		t.Errorf("record = %v, want %v", pubs[0].Record, want)
	}
	if res := s.Result(); res.FramesDispatched != 2 || res.Protocol != "streamed" {
		t.Errorf("result = %+v", res)
	}
}

func TestFetch_WaitsForCookiePixels(t *testing.T) {
	body := "event: message\ndata: {\"send_pixel\":[\"${transport_url}/_set_cookie?a=1\",\"${transport_url}/_set_cookie?b=2\",\"https://ads.example.com/p\"]}\n\n" +
		"event: message\ndata: {\"response\":{\"status_code\":200,\"body\":{\"ok\":true}}}\n\n"
	ts := httptest.NewServer(respond(http.StatusOK, body))
	defer ts.Close()

	pixels := &heldPixels{}
	pub := &recordingPublisher{}
	s := newTestSession(t, newTestRequest(ts.URL), pixels, pub)
	(&FetchDriver{Client: ts.Client()}).Run(t.Context(), s)

	if pixels.count() != 3 {
		t.Fatalf("loaded %d pixels, want 3", pixels.count())
	}
	if res := s.Result(); res.Outcome.Status != types.OutcomePending || res.PendingCookies != 2 {
		t.Fatalf("result = %+v, want pending with 2 cookies", res)
	}

	pixels.complete(1, errors.New("blocked"))
	pixels.complete(2, nil) // not a cookie pixel
	select {
	case <-s.Done():
		t.Fatal("published before the last cookie pixel completed")
	case <-time.After(50 * time.Millisecond):
	}
	if len(pub.published()) != 0 {
		t.Fatal("published before the last cookie pixel completed")
	}

	pixels.complete(0, nil)
	waitDone(t, s)

	pubs := pub.published()
	if len(pubs) != 1 {
		t.Fatalf("published %d records, want 1", len(pubs))
	}
	if pubs[0].Record["ok"] != true {
		t.Errorf("record = %v", pubs[0].Record)
	}
}

func TestFetch_CookiesSettledBeforeCompletion(t *testing.T) {
	body := "event: message\ndata: {\"send_pixel\":[\"${transport_url}/_set_cookie?a=1\"],\"response\":{\"status_code\":200}}\n\n"
	ts := httptest.NewServer(respond(http.StatusOK, body))
	defer ts.Close()

	pub := &recordingPublisher{}
	s := newTestSession(t, newTestRequest(ts.URL), instantPixels{}, pub)
	(&FetchDriver{Client: ts.Client()}).Run(t.Context(), s)
	waitDone(t, s)

	// Give the zero-count continuation a chance to run; it must not publish again.
	time.Sleep(50 * time.Millisecond)
	if got := len(pub.published()); got != 1 {
		t.Errorf("published %d records, want 1", got)
	}
}

func TestFetch_NoWaitPublishesWithPendingCookies(t *testing.T) {
	body := "event: message\ndata: {\"send_pixel\":[\"${transport_url}/_set_cookie?a=1\"],\"response\":{\"status_code\":200}}\n\n"
	ts := httptest.NewServer(respond(http.StatusOK, body))
	defer ts.Close()

	req := newTestRequest(ts.URL)
	req.WaitForCookies = false
	pixels := &heldPixels{}
	pub := &recordingPublisher{}
	s := newTestSession(t, req, pixels, pub)
	(&FetchDriver{Client: ts.Client()}).Run(t.Context(), s)
	waitDone(t, s)

	pixels.complete(0, nil)
	time.Sleep(50 * time.Millisecond)
	if got := len(pub.published()); got != 1 {
		t.Errorf("published %d records, want 1", got)
	}
}

func TestFetch_NetworkFailure(t *testing.T) {
	ts := httptest.NewServer(respond(http.StatusOK, ""))
	url := ts.URL
	ts.Close()

	pub := &recordingPublisher{}
	s := newTestSession(t, newTestRequest(url), &heldPixels{}, pub)
	(&FetchDriver{Client: &http.Client{Timeout: time.Second}}).Run(t.Context(), s)
	waitDone(t, s)

	if res := s.Result(); res.Outcome.Status != types.OutcomeNetworkFailure {
		t.Errorf("outcome = %v, want network_failure", res.Outcome)
	}
	if len(pub.published()) != 0 {
		t.Error("network failure must not publish")
	}
}

func TestFetch_PublishingDisabled(t *testing.T) {
	ts := httptest.NewServer(respond(http.StatusOK, `{"bar":2}`))
	defer ts.Close()

	req := newTestRequest(ts.URL)
	req.EventName = ""
	pub := &recordingPublisher{}
	s := newTestSession(t, req, &heldPixels{}, pub)
	(&FetchDriver{Client: ts.Client()}).Run(t.Context(), s)
	waitDone(t, s)

	if res := s.Result(); res.Outcome.Status != types.OutcomeCompletedNoPublish {
		t.Errorf("outcome = %v, want completed_no_publish", res.Outcome)
	}
	if len(pub.published()) != 0 {
		t.Error("disabled publishing must not publish")
	}
}

func TestFetch_PublishError(t *testing.T) {
	ts := httptest.NewServer(respond(http.StatusOK, `{"bar":2}`))
	defer ts.Close()

	pub := &recordingPublisher{err: errors.New("queue unavailable")}
	s := newTestSession(t, newTestRequest(ts.URL), &heldPixels{}, pub)
	(&FetchDriver{Client: ts.Client()}).Run(t.Context(), s)
	waitDone(t, s)

	res := s.Result()
	if res.Outcome.Status != types.OutcomePublishFailed {
		t.Errorf("outcome = %v, want publish_failed", res.Outcome)
	}
	if res.Record["bar"] != float64(2) {
		t.Errorf("record = %v", res.Record)
	}
}

func TestFetch_Non2xxStillPublishes(t *testing.T) {
	ts := httptest.NewServer(respond(http.StatusBadGateway, "upstream down"))
	defer ts.Close()

	pub := &recordingPublisher{}
	s := newTestSession(t, newTestRequest(ts.URL), &heldPixels{}, pub)
	(&FetchDriver{Client: ts.Client()}).Run(t.Context(), s)
	waitDone(t, s)

	pubs := pub.published()
	if len(pubs) != 1 {
		t.Fatalf("published %d records, want 1", len(pubs))
	}
	want := types.Record{"body": "upstream down", "status": 502, "event": types.DefaultEventName}
	if !reflect.DeepEqual(pubs[0].Record, want) {
		t.Errorf("record = %v, want %v", pubs[0].Record, want)
	}
}

func TestFetch_LegacyBodyInterpolated(t *testing.T) {
	ts := httptest.NewServer(respond(http.StatusOK, `{"endpoint":"${transport_url}/x","keep":"${unknown}"}`))
	defer ts.Close()

	pub := &recordingPublisher{}
	s := newTestSession(t, newTestRequest(ts.URL), &heldPixels{}, pub)
	(&FetchDriver{Client: ts.Client()}).Run(t.Context(), s)
	waitDone(t, s)

	rec := pub.published()[0].Record
	if rec["endpoint"] != ts.URL+"/x" || rec["keep"] != "${unknown}" {
		t.Errorf("record = %v", rec)
	}
}

func TestStreaming_DispatchesBeforeCompletion(t *testing.T) {
	pixelHit := make(chan struct{}, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/pixel", func(http.ResponseWriter, *http.Request) {
		pixelHit <- struct{}{}
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: message\ndata: {\"send_pixel\":[\"${transport_url}/pixel\"],\"response\":{\"status_code\":200,\"body\":{\"a\":1}}}\n\n")
		flusher.Flush()

		// The second frame is only written once the first frame's pixel arrived.
		select {
		case <-pixelHit:
		case <-time.After(5 * time.Second):
			t.Error("first frame was not dispatched before the response completed")
		}
		_, _ = io.WriteString(w, "event: message\ndata: {\"response\":{\"status_code\":201,\"body\":{\"b\":2}}}\n\n")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	pixels := dispatch.NewHTTPPixelLoader(ts.Client())
	pub := &recordingPublisher{}
	s := newTestSession(t, newTestRequest(ts.URL), pixels, pub)
	(&StreamingDriver{Client: ts.Client(), ChunkSize: 16}).Run(t.Context(), s)
	waitDone(t, s)

	pubs := pub.published()
	if len(pubs) != 1 {
		t.Fatalf("published %d records, want 1", len(pubs))
	}
	want := types.Record{"a": float64(1), "b": float64(2), "status": 201, "event": types.DefaultEventName}
	if !reflect.DeepEqual(pubs[0].Record, want) {
		t.Errorf("record = %v, want %v", pubs[0].Record, want)
	}
}

func TestStreaming_WaitsForCookiesAfterLoad(t *testing.T) {
	pixels := &heldPixels{}
	pub := &recordingPublisher{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = io.WriteString(w, "event: message\ndata: {\"send_pixel\":[\"${transport_url}/_set_cookie?a=1\"],\"response\":{\"status_code\":200,\"body\":{\"a\":1}}}\n\n")
		flusher.Flush()

		deadline := time.Now().Add(5 * time.Second)
		for pixels.count() < 1 {
			if time.Now().After(deadline) {
				t.Error("first cookie pixel was not dispatched mid-stream")
				return
			}
			time.Sleep(5 * time.Millisecond)
		}

		// The counter drops to zero while the response is still loading.
		pixels.complete(0, nil)
		time.Sleep(50 * time.Millisecond)
		if got := len(pub.published()); got != 0 {
			t.Errorf("published %d records before the response completed", got)
		}

		_, _ = io.WriteString(w, "event: message\ndata: {\"send_pixel\":[\"${transport_url}/_set_cookie?b=2\"],\"response\":{\"status_code\":201,\"body\":{\"b\":2}}}\n\n")
	}))
	defer ts.Close()

	s := newTestSession(t, newTestRequest(ts.URL), pixels, pub)
	(&StreamingDriver{Client: ts.Client(), ChunkSize: 16}).Run(t.Context(), s)

	if res := s.Result(); res.Outcome.Status != types.OutcomePending || res.PendingCookies != 1 {
		t.Fatalf("result = %+v, want pending with 1 cookie", res)
	}
	if len(pub.published()) != 0 {
		t.Fatal("published before the last cookie pixel completed")
	}

	pixels.complete(1, nil)
	waitDone(t, s)

	time.Sleep(50 * time.Millisecond)
	pubs := pub.published()
	if len(pubs) != 1 {
		t.Fatalf("published %d records, want 1", len(pubs))
	}
	want := types.Record{"a": float64(1), "b": float64(2), "status": 201, "event": types.DefaultEventName}
	if !reflect.DeepEqual(pubs[0].Record, want) {
		t.Errorf("record = %v, want %v", pubs[0].Record, want)
	}
}

func TestStreaming_Non2xxMergedAsLegacy(t *testing.T) {
	ts := httptest.NewServer(respond(http.StatusInternalServerError, twoResponseFrames))
	defer ts.Close()

	pub := &recordingPublisher{}
	s := newTestSession(t, newTestRequest(ts.URL), &heldPixels{}, pub)
	(&StreamingDriver{Client: ts.Client()}).Run(t.Context(), s)
	waitDone(t, s)

	res := s.Result()
	if res.FramesDispatched != 0 {
		t.Errorf("FramesDispatched = %d, want 0 for non-2xx", res.FramesDispatched)
	}
	if res.Protocol != "legacy" || res.Record["status"] != 500 || res.Record["body"] != twoResponseFrames {
		t.Errorf("result = %+v", res)
	}
}

func TestNewDriver(t *testing.T) {
	if d, err := NewDriver(types.TransportFetch, nil); err != nil {
		t.Errorf("fetch: %v", err)
	} else if _, ok := d.(*FetchDriver); !ok {
		t.Errorf("fetch driver = %T", d)
	}
	if d, err := NewDriver(types.TransportStreaming, nil); err != nil {
		t.Errorf("streaming: %v", err)
	} else if _, ok := d.(*StreamingDriver); !ok {
		t.Errorf("streaming driver = %T", d)
	}
	if _, err := NewDriver("carrier-pigeon", nil); err == nil {
		t.Error("expected error for unknown transport")
	}
}
