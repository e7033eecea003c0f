// Package metrics provides relay metrics collection.
//
// The Collector accumulates counters across the transmissions of one relay.
// It is a leaf package with no internal dependencies.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all relay counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Transmission lifecycle
	TransmissionsStarted   int64 `json:"transmissions_started"`
	TransmissionsPublished int64 `json:"transmissions_published"`
	TransmissionsAborted   int64 `json:"transmissions_aborted"`
	TransmissionsFailed    int64 `json:"transmissions_failed"`

	// Response stream
	FramesDecoded   int64 `json:"frames_decoded"`
	FramesMalformed int64 `json:"frames_malformed"`
	LegacyResponses int64 `json:"legacy_responses"`
	Non2xxResponses int64 `json:"non_2xx_responses"`

	// Side effects
	PixelsSent            int64 `json:"pixels_sent"`
	CookiePixelsSent      int64 `json:"cookie_pixels_sent"`
	CookiePixelsCompleted int64 `json:"cookie_pixels_completed"`
	BeaconsSent           int64 `json:"beacons_sent"`
	BeaconFallbacks       int64 `json:"beacon_fallbacks"`

	// Publishing
	PublishErrors int64 `json:"publish_errors"`

	// Dimensions (informational, set at construction)
	Transport string `json:"transport"`
	Publisher string `json:"publisher"`
}

// Collector accumulates relay counters.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(transport, publisher string) *Collector {
	return &Collector{s: Snapshot{Transport: transport, Publisher: publisher}}
}

// add applies fn under the lock. nil-receiver safe.
func (c *Collector) add(fn func(s *Snapshot)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	fn(&c.s)
	c.mu.Unlock()
}

// --- Transmission lifecycle ---

// IncTransmissionStarted records a transmission that passed the consent gate.
func (c *Collector) IncTransmissionStarted() { c.add(func(s *Snapshot) { s.TransmissionsStarted++ }) }

// IncTransmissionPublished records a record appended to its target queue.
func (c *Collector) IncTransmissionPublished() {
	c.add(func(s *Snapshot) { s.TransmissionsPublished++ })
}

// IncTransmissionAborted records a transmission stopped by the consent gate.
func (c *Collector) IncTransmissionAborted() { c.add(func(s *Snapshot) { s.TransmissionsAborted++ }) }

// IncTransmissionFailed records a main-request network failure.
func (c *Collector) IncTransmissionFailed() { c.add(func(s *Snapshot) { s.TransmissionsFailed++ }) }

// --- Response stream ---

// IncFramesDecoded records a frame decoded and handed to the merger.
func (c *Collector) IncFramesDecoded() { c.add(func(s *Snapshot) { s.FramesDecoded++ }) }

// IncFramesMalformed records a frame skipped for bad framing or bad JSON.
func (c *Collector) IncFramesMalformed() { c.add(func(s *Snapshot) { s.FramesMalformed++ }) }

// IncLegacyResponses records a response handled by the legacy path.
func (c *Collector) IncLegacyResponses() { c.add(func(s *Snapshot) { s.LegacyResponses++ }) }

// IncNon2xxResponses records a main response with a non-2xx status.
func (c *Collector) IncNon2xxResponses() { c.add(func(s *Snapshot) { s.Non2xxResponses++ }) }

// --- Side effects ---

// IncPixelsSent records any pixel request, cookie-setting or not.
func (c *Collector) IncPixelsSent() { c.add(func(s *Snapshot) { s.PixelsSent++ }) }

// IncCookiePixelsSent records a cookie-setting pixel request.
func (c *Collector) IncCookiePixelsSent() { c.add(func(s *Snapshot) { s.CookiePixelsSent++ }) }

// IncCookiePixelsCompleted records a cookie-setting pixel completion.
func (c *Collector) IncCookiePixelsCompleted() {
	c.add(func(s *Snapshot) { s.CookiePixelsCompleted++ })
}

// IncBeaconsSent records a beacon accepted by the beaconer.
func (c *Collector) IncBeaconsSent() { c.add(func(s *Snapshot) { s.BeaconsSent++ }) }

// IncBeaconFallbacks records a beacon that fell back to a pixel.
func (c *Collector) IncBeaconFallbacks() { c.add(func(s *Snapshot) { s.BeaconFallbacks++ }) }

// --- Publishing ---

// IncPublishErrors records a publish rejected by the adapter.
func (c *Collector) IncPublishErrors() { c.add(func(s *Snapshot) { s.PublishErrors++ }) }

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
