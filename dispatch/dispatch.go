// Package dispatch fires the side effects requested by the tag server:
// image pixels and beacons.
//
// Pixels whose URL starts with the server's cookie-setting prefix are tracked
// by a Counter until their load completes, successfully or not. Beacons fall
// back to pixels whenever the beacon cannot be queued.
package dispatch

import (
	"context"
	"strings"
	"sync"

	"github.com/pithecene-io/tagrelay/log"
	"github.com/pithecene-io/tagrelay/metrics"
)

// PixelLoader requests a URL the way a 1x1 image would be loaded.
type PixelLoader interface {
	// LoadPixel starts the load and returns without blocking. done is called
	// when the load finishes, with a non-nil error if it failed.
	LoadPixel(ctx context.Context, url string, done func(err error))
}

// Beaconer sends fire-and-forget beacons.
type Beaconer interface {
	// SendBeacon queues a beacon for url. False means it was not queued.
	SendBeacon(ctx context.Context, url string) bool
}

// Config configures a Dispatcher.
type Config struct {
	// CookiePrefix marks cookie-setting pixels, e.g. "https://sgtm.example.com/_set_cookie".
	CookiePrefix string
	// Pending tracks outstanding cookie-setting pixels (required).
	Pending *Counter
	// Pixels loads pixels (required).
	Pixels PixelLoader
	// Beacons sends beacons. Nil means no beacon capability.
	Beacons Beaconer
	// Logger receives debug output. Nil disables logging.
	Logger *log.Logger
	// Collector receives counters. May be nil.
	Collector *metrics.Collector
}

// Dispatcher fires pixels and beacons for one transmission.
type Dispatcher struct {
	cookiePrefix string
	pending      *Counter
	pixels       PixelLoader
	beacons      Beaconer
	logger       *log.Logger
	collector    *metrics.Collector
}

// New creates a dispatcher from cfg.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	pending := cfg.Pending
	if pending == nil {
		pending = NewCounter()
	}
	return &Dispatcher{
		cookiePrefix: cfg.CookiePrefix,
		pending:      pending,
		pixels:       cfg.Pixels,
		beacons:      cfg.Beacons,
		logger:       logger,
		collector:    cfg.Collector,
	}
}

// IsCookiePixel reports whether url targets the cookie-setting endpoint.
func (d *Dispatcher) IsCookiePixel(url string) bool {
	return d.cookiePrefix != "" && strings.HasPrefix(url, d.cookiePrefix)
}

// Pending returns the number of cookie-setting pixels still loading.
func (d *Dispatcher) Pending() int {
	return d.pending.Pending()
}

// EmitPixel requests url as an image.
// Cookie-setting pixels hold the pending counter until their completion fires.
// A second completion for the same pixel is a no-op.
func (d *Dispatcher) EmitPixel(ctx context.Context, url string) {
	d.collector.IncPixelsSent()

	if !d.IsCookiePixel(url) {
		d.pixels.LoadPixel(ctx, url, func(error) {})
		return
	}

	d.collector.IncCookiePixelsSent()
	d.pending.Acquire()

	var once sync.Once
	d.pixels.LoadPixel(ctx, url, func(err error) {
		once.Do(func() {
			if err != nil {
				d.logger.Debug("cookie pixel failed", map[string]any{
					"url":   url,
					"error": err.Error(),
				})
			}
			d.collector.IncCookiePixelsCompleted()
			d.pending.Release()
		})
	})
}

// EmitBeacon sends url as a beacon, falling back to EmitPixel when the
// beacon is unsupported, refused, or panics. Never panics itself.
func (d *Dispatcher) EmitBeacon(ctx context.Context, url string) {
	if d.trySendBeacon(ctx, url) {
		d.collector.IncBeaconsSent()
		return
	}
	d.collector.IncBeaconFallbacks()
	d.logger.Debug("beacon not queued, falling back to pixel", map[string]any{"url": url})
	d.EmitPixel(ctx, url)
}

func (d *Dispatcher) trySendBeacon(ctx context.Context, url string) (queued bool) {
	if d.beacons == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Debug("beacon panicked", map[string]any{"url": url, "panic": r})
			queued = false
		}
	}()
	return d.beacons.SendBeacon(ctx, url)
}
