package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("streaming", "datalayer")

	c.IncTransmissionStarted()
	c.IncTransmissionStarted()
	c.IncTransmissionPublished()
	c.IncTransmissionAborted()
	c.IncTransmissionFailed()
	c.IncFramesDecoded()
	c.IncFramesDecoded()
	c.IncFramesDecoded()
	c.IncFramesMalformed()
	c.IncLegacyResponses()
	c.IncNon2xxResponses()
	c.IncPixelsSent()
	c.IncPixelsSent()
	c.IncCookiePixelsSent()
	c.IncCookiePixelsCompleted()
	c.IncBeaconsSent()
	c.IncBeaconFallbacks()
	c.IncPublishErrors()

	s := c.Snapshot()

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"TransmissionsStarted", s.TransmissionsStarted, 2},
		{"TransmissionsPublished", s.TransmissionsPublished, 1},
		{"TransmissionsAborted", s.TransmissionsAborted, 1},
		{"TransmissionsFailed", s.TransmissionsFailed, 1},
		{"FramesDecoded", s.FramesDecoded, 3},
		{"FramesMalformed", s.FramesMalformed, 1},
		{"LegacyResponses", s.LegacyResponses, 1},
		{"Non2xxResponses", s.Non2xxResponses, 1},
		{"PixelsSent", s.PixelsSent, 2},
		{"CookiePixelsSent", s.CookiePixelsSent, 1},
		{"CookiePixelsCompleted", s.CookiePixelsCompleted, 1},
		{"BeaconsSent", s.BeaconsSent, 1},
		{"BeaconFallbacks", s.BeaconFallbacks, 1},
		{"PublishErrors", s.PublishErrors, 1},
	}
	for _, tc := range checks {
		if tc.got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("fetch", "webhook")
	s := c.Snapshot()

	if s.Transport != "fetch" {
		t.Errorf("Transport = %q, want %q", s.Transport, "fetch")
	}
	if s.Publisher != "webhook" {
		t.Errorf("Publisher = %q, want %q", s.Publisher, "webhook")
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("fetch", "datalayer")
	c.IncTransmissionStarted()

	s1 := c.Snapshot()

	c.IncTransmissionStarted()
	c.IncTransmissionPublished()

	if s1.TransmissionsStarted != 1 {
		t.Errorf("s1.TransmissionsStarted = %d, want 1 (snapshot should be frozen)", s1.TransmissionsStarted)
	}
	if s1.TransmissionsPublished != 0 {
		t.Errorf("s1.TransmissionsPublished = %d, want 0 (snapshot should be frozen)", s1.TransmissionsPublished)
	}

	s2 := c.Snapshot()
	if s2.TransmissionsStarted != 2 {
		t.Errorf("s2.TransmissionsStarted = %d, want 2", s2.TransmissionsStarted)
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncTransmissionStarted()
	c.IncTransmissionPublished()
	c.IncTransmissionAborted()
	c.IncTransmissionFailed()
	c.IncFramesDecoded()
	c.IncFramesMalformed()
	c.IncLegacyResponses()
	c.IncNon2xxResponses()
	c.IncPixelsSent()
	c.IncCookiePixelsSent()
	c.IncCookiePixelsCompleted()
	c.IncBeaconsSent()
	c.IncBeaconFallbacks()
	c.IncPublishErrors()

	if s := c.Snapshot(); s != (Snapshot{}) {
		t.Errorf("nil collector snapshot = %+v, want zero", s)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("streaming", "datalayer")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncCookiePixelsSent()
				c.IncCookiePixelsCompleted()
				c.IncFramesDecoded()
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.CookiePixelsSent != want {
		t.Errorf("CookiePixelsSent = %d, want %d", s.CookiePixelsSent, want)
	}
	if s.CookiePixelsCompleted != want {
		t.Errorf("CookiePixelsCompleted = %d, want %d", s.CookiePixelsCompleted, want)
	}
	if s.FramesDecoded != want {
		t.Errorf("FramesDecoded = %d, want %d", s.FramesDecoded, want)
	}
}
