// Package relay is the entry point of the tag relay.
//
// Transmit checks consent, enriches the payload from the page's data layer,
// and hands the transmission to the configured transport driver. The returned
// Handle observes the transmission until its record is published.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/tagrelay/adapter"
	"github.com/pithecene-io/tagrelay/consent"
	"github.com/pithecene-io/tagrelay/dispatch"
	"github.com/pithecene-io/tagrelay/log"
	"github.com/pithecene-io/tagrelay/metrics"
	"github.com/pithecene-io/tagrelay/transport"
	"github.com/pithecene-io/tagrelay/types"
)

// ErrNoConsent is returned by Transmit when the consent gate denies the
// transmission. No network call is made.
var ErrNoConsent = errors.New("user has not consented to the transmission")

// ErrNotPublished is returned by Handle.Wait when the transmission ended, or
// was still pending, without a published record.
var ErrNotPublished = errors.New("transmission not published")

// DefaultTimeout is the default timeout of the main request.
const DefaultTimeout = 30 * time.Second

// Config configures a Relay.
type Config struct {
	// Publisher receives published records (required).
	Publisher adapter.Adapter
	// Consent provides the page queues read by the consent gate.
	// Nil means every queue is empty.
	Consent consent.Source
	// Timeout bounds the main request (default 30s).
	Timeout time.Duration
	// PixelTimeout bounds each pixel load. Zero means no bound.
	PixelTimeout time.Duration
	// BeaconBudget is the number of beacons allowed in flight
	// (default dispatch.DefaultBeaconBudget).
	BeaconBudget int
}

// Option customizes a Relay.
type Option func(*Relay)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(r *Relay) { r.collector = c }
}

// WithHTTPClient sets the client of the main request. Its cookie jar is
// shared with the default pixel loader and beaconer.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) { r.client = c }
}

// WithPixelLoader replaces the HTTP pixel loader.
func WithPixelLoader(p dispatch.PixelLoader) Option {
	return func(r *Relay) { r.pixels = p }
}

// WithBeaconer replaces the HTTP beaconer. A nil Beaconer disables beacons,
// so every beacon falls back to a pixel.
func WithBeaconer(b dispatch.Beaconer) Option {
	return func(r *Relay) {
		r.beacons = b
		r.beaconsSet = true
	}
}

// WithIDFunc sets the transmission ID generator.
func WithIDFunc(fn func() string) Option {
	return func(r *Relay) { r.newID = fn }
}

// Relay sends transmissions to a tag server.
type Relay struct {
	publisher  adapter.Adapter
	consent    consent.Source
	client     *http.Client
	pixels     dispatch.PixelLoader
	beacons    dispatch.Beaconer
	beaconsSet bool
	logger     *log.Logger
	collector  *metrics.Collector
	newID      func() string

	httpPixels  *dispatch.HTTPPixelLoader
	httpBeacons *dispatch.HTTPBeaconer
}

// New creates a relay.
func New(cfg Config, opts ...Option) (*Relay, error) {
	if cfg.Publisher == nil {
		return nil, errors.New("relay requires a publisher")
	}

	r := &Relay{
		publisher: cfg.Publisher,
		consent:   cfg.Consent,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.NewNop()
	}

	if r.client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		r.client = &http.Client{Jar: jar, Timeout: timeout}
	}

	if r.pixels == nil {
		r.httpPixels = dispatch.NewHTTPPixelLoader(&http.Client{
			Jar:       r.client.Jar,
			Transport: r.client.Transport,
			Timeout:   cfg.PixelTimeout,
		})
		r.pixels = r.httpPixels
	}
	if !r.beaconsSet {
		r.httpBeacons = dispatch.NewHTTPBeaconer(&http.Client{
			Jar:       r.client.Jar,
			Transport: r.client.Transport,
		}, cfg.BeaconBudget)
		r.beacons = r.httpBeacons
	}

	return r, nil
}

// Transmit starts a transmission. It returns ErrNoConsent, without any
// network activity, when the consent gate denies it.
func (r *Relay) Transmit(ctx context.Context, req types.TransmissionRequest) (*Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transmission: %w", err)
	}

	id := r.newID()
	logger := r.logger.ForTransmission(types.TransmissionMeta{
		TransmissionID: id,
		EventName:      req.EventName,
		Transport:      req.Transport,
	})

	decision := consent.Check(r.consent, req)
	if !decision.Granted {
		r.collector.IncTransmissionAborted()
		logger.Warn("user has not consented, transmission aborted", map[string]any{
			"consent_key":   req.ConsentKey,
			"consent_queue": req.ConsentQueue,
			"consent_found": decision.Found,
		})
		return nil, ErrNoConsent
	}

	driver, err := transport.NewDriver(req.Transport, r.client)
	if err != nil {
		return nil, err
	}

	session := transport.NewSession(ctx, transport.SessionConfig{
		TransmissionID: id,
		Request:        req,
		Payload:        decision.Payload,
		Publisher:      r.publisher,
		Pixels:         r.pixels,
		Beacons:        r.beacons,
		Logger:         logger,
		Collector:      r.collector,
	})

	r.collector.IncTransmissionStarted()
	logger.Debug("transmission started", map[string]any{
		"endpoint": req.Endpoint(),
	})
	go driver.Run(ctx, session)

	return &Handle{session: session}, nil
}

// Close waits for queued beacons, then closes the publisher.
// Pixel loads are not awaited: a hung load would block forever.
func (r *Relay) Close() error {
	if r.httpBeacons != nil {
		r.httpBeacons.Wait()
	}
	return r.publisher.Close()
}
