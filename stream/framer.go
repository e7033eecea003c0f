package stream

import (
	"bytes"
	"context"

	"github.com/pithecene-io/tagrelay/interp"
	"github.com/pithecene-io/tagrelay/log"
	"github.com/pithecene-io/tagrelay/metrics"
	"github.com/pithecene-io/tagrelay/types"
)

// Applier receives decoded frames in arrival order.
// *merge.Accumulator implements it.
type Applier interface {
	ApplyEvent(ctx context.Context, ev *types.ResponseEvent)
}

// Config configures a Framer.
type Config struct {
	// Vars is the template mapping applied to every complete frame.
	Vars map[string]string
	// Target receives decoded events (required).
	Target Applier
	// Logger receives debug output for skipped frames. Nil disables logging.
	Logger *log.Logger
	// Collector receives frame counters. May be nil.
	Collector *metrics.Collector
	// MaxPendingFrame bounds the unterminated text buffered for one frame.
	// A frame growing past it is discarded whole and counted as malformed.
	// 0 means unlimited.
	MaxPendingFrame int
}

// Framer extracts frames from a response body delivered in pieces.
// Only the unterminated remainder after the last frame boundary is kept
// between calls, so no frame is ever dispatched twice.
// It is not safe for concurrent use.
type Framer struct {
	vars      map[string]string
	target    Applier
	logger    *log.Logger
	collector *metrics.Collector
	maxFrame  int

	buf []byte
	// scanned is the offset in buf up to which no boundary starts.
	scanned int
	// discarding drops input up to the next boundary after an oversized frame.
	discarding bool
	dispatched int
	skipped    int
}

// NewFramer creates a framer from cfg.
func NewFramer(cfg Config) *Framer {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Framer{
		vars:      cfg.Vars,
		target:    cfg.Target,
		logger:    logger,
		collector: cfg.Collector,
		maxFrame:  cfg.MaxPendingFrame,
	}
}

// Consume processes raw[consumed:], the text received since the previous
// call, dispatching every frame it completes. It returns the new consumed
// length, len(raw). Calling it again with the same raw is a no-op.
func (f *Framer) Consume(ctx context.Context, raw []byte, consumed int) int {
	if consumed < 0 {
		consumed = 0
	}
	if consumed < len(raw) {
		f.buf = append(f.buf, raw[consumed:]...)
		f.drain(ctx, false)
	}
	return len(raw)
}

// Finish dispatches the unterminated remainder as a final frame.
// Call it once the response has completed.
func (f *Framer) Finish(ctx context.Context) {
	if f.discarding {
		f.buf = nil
		f.discarding = false
	}
	f.drain(ctx, true)
	f.buf = nil
	f.scanned = 0
}

// Dispatched returns the number of frames handed to the target.
func (f *Framer) Dispatched() int {
	return f.dispatched
}

// Skipped returns the number of malformed or undecodable frames.
func (f *Framer) Skipped() int {
	return f.skipped
}

// Buffered returns the length of the retained unterminated text.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

func (f *Framer) drain(ctx context.Context, atEOF bool) {
	if f.discarding && !f.skipToBoundary() {
		return
	}

	for len(f.buf) > 0 {
		if !atEOF && bytes.Index(f.buf[f.scanned:], frameBoundary) < 0 {
			// A boundary may straddle the next delivery.
			f.scanned = max(len(f.buf)-len(frameBoundary)+1, 0)
			break
		}
		advance, token, _ := ScanFrames(f.buf, atEOF)
		if advance == 0 {
			break
		}
		frame := string(token)
		f.buf = f.buf[advance:]
		f.scanned = 0
		if frame != "" {
			f.handle(ctx, frame)
		}
	}

	if f.maxFrame > 0 && len(f.buf) > f.maxFrame {
		f.skip("pending frame exceeds limit", map[string]any{"buffered": len(f.buf), "limit": f.maxFrame})
		f.buf = nil
		f.scanned = 0
		f.discarding = true
	}
}

// skipToBoundary drops buffered text up to and including the next frame
// boundary. It reports whether the boundary was found.
func (f *Framer) skipToBoundary() bool {
	i := bytes.Index(f.buf, frameBoundary)
	if i < 0 {
		// Keep a possible partial boundary.
		if n := len(f.buf); n > 0 && f.buf[n-1] == '\n' {
			f.buf = f.buf[n-1:]
		} else {
			f.buf = f.buf[:0]
		}
		return false
	}
	f.buf = f.buf[i+len(frameBoundary):]
	f.scanned = 0
	f.discarding = false
	return true
}

func (f *Framer) handle(ctx context.Context, frame string) {
	ev, err := ParseFrame(interp.Interpolate(frame, f.vars))
	if err != nil {
		f.skip("skipping frame", map[string]any{"error": err.Error()})
		return
	}

	f.dispatched++
	f.collector.IncFramesDecoded()
	f.target.ApplyEvent(ctx, ev)
}

func (f *Framer) skip(msg string, fields map[string]any) {
	f.skipped++
	f.collector.IncFramesMalformed()
	f.logger.Debug(msg, fields)
}
