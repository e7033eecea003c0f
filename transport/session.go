// Package transport sends a transmission to the tag server and decides when
// its merged record is handed to the target queue.
//
// A Session owns every piece of per-transmission state: the pending cookie
// counter, the dispatcher, the accumulated record and the framer. A Driver
// performs the network call and reports progress and completion to the
// Session. The Session publishes at most once, either when the response
// completes or, when waiting for cookies, when the last cookie-setting pixel
// settles after completion.
package transport

import (
	"context"
	"sync"

	"github.com/pithecene-io/tagrelay/adapter"
	"github.com/pithecene-io/tagrelay/dispatch"
	"github.com/pithecene-io/tagrelay/interp"
	"github.com/pithecene-io/tagrelay/log"
	"github.com/pithecene-io/tagrelay/merge"
	"github.com/pithecene-io/tagrelay/metrics"
	"github.com/pithecene-io/tagrelay/stream"
	"github.com/pithecene-io/tagrelay/types"
)

// SessionConfig configures a Session.
type SessionConfig struct {
	// TransmissionID identifies the transmission in logs and publications.
	TransmissionID string
	// Request is the transmission request. It is not modified.
	Request types.TransmissionRequest
	// Payload overrides Request.Payload as the request body when non-nil.
	Payload map[string]any
	// Publisher receives the record (required when publishing is enabled).
	Publisher adapter.Adapter
	// Pixels loads pixels (required).
	Pixels dispatch.PixelLoader
	// Beacons sends beacons. Nil means beacons always fall back to pixels.
	Beacons dispatch.Beaconer
	// Logger receives transmission logs. Nil disables logging.
	Logger *log.Logger
	// Collector receives counters. May be nil.
	Collector *metrics.Collector
}

// Session is the state of one transmission.
type Session struct {
	id        string
	req       types.TransmissionRequest
	payload   map[string]any
	publisher adapter.Adapter
	logger    *log.Logger
	collector *metrics.Collector

	// publishCtx outlives the caller so a deferred publish can still run.
	publishCtx context.Context

	pending    *dispatch.Counter
	dispatcher *dispatch.Dispatcher

	mu         sync.Mutex
	acc        *merge.Accumulator
	framer     *stream.Framer
	consumed   int
	terminal   bool
	claimed    bool
	protocol   stream.Protocol
	httpStatus int
	outcome    types.Outcome
	record     types.Record
	done       chan struct{}
}

// NewSession creates the state for one transmission.
func NewSession(ctx context.Context, cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	payload := cfg.Payload
	if payload == nil {
		payload = cfg.Request.Payload
	}

	s := &Session{
		id:         cfg.TransmissionID,
		req:        cfg.Request,
		payload:    payload,
		publisher:  cfg.Publisher,
		logger:     logger,
		collector:  cfg.Collector,
		publishCtx: context.WithoutCancel(ctx),
		pending:    dispatch.NewCounter(),
		outcome:    types.Outcome{Status: types.OutcomePending},
		done:       make(chan struct{}),
	}

	s.dispatcher = dispatch.New(dispatch.Config{
		CookiePrefix: cfg.Request.CookiePrefix(),
		Pending:      s.pending,
		Pixels:       cfg.Pixels,
		Beacons:      cfg.Beacons,
		Logger:       logger,
		Collector:    cfg.Collector,
	})
	s.acc = merge.New(s.dispatcher, logger)
	s.framer = stream.NewFramer(stream.Config{
		Vars:      cfg.Request.Replacements(),
		Target:    s.acc,
		Logger:    logger,
		Collector: cfg.Collector,
	})

	// A pixel may complete synchronously while a frame is being applied under
	// s.mu, so the continuation must not run on the releasing goroutine.
	s.pending.OnZero(func() { go s.cookiesSettled() })
	return s
}

// ID returns the transmission ID.
func (s *Session) ID() string { return s.id }

// Request returns the transmission request.
func (s *Session) Request() types.TransmissionRequest { return s.req }

// Payload returns the payload sent as the request body.
func (s *Session) Payload() map[string]any { return s.payload }

// Done is closed once the transmission reaches a terminal outcome.
// It stays open while a publish is deferred on pending cookies.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the current state of the transmission.
func (s *Session) Result() types.TransmissionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := types.TransmissionResult{
		TransmissionID:   s.id,
		Outcome:          s.outcome,
		HTTPStatus:       s.httpStatus,
		FramesDispatched: s.framer.Dispatched(),
		PendingCookies:   s.pending.Pending(),
	}
	if s.terminal {
		res.Protocol = s.protocol.String()
	}
	if s.record != nil {
		res.Record = s.record.Clone()
	} else {
		res.Record = s.acc.Record()
	}
	return res
}

// progress handles a progress notification of a streaming response.
// raw is the whole body received so far.
func (s *Session) progress(ctx context.Context, raw []byte, status int) {
	if !is2xx(status) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stream.Classify(raw) == stream.ProtocolStreamed {
		s.consumed = s.framer.Consume(ctx, raw, s.consumed)
	}
}

// complete handles the final response body. When framesOnError is false a
// non-2xx response is merged as legacy whatever its shape.
func (s *Session) complete(ctx context.Context, raw []byte, status int, framesOnError bool) {
	if !is2xx(status) {
		s.collector.IncNon2xxResponses()
		s.logger.Warn("tag server returned non-2xx status", map[string]any{
			"status_code": status,
		})
	}

	s.mu.Lock()
	protocol := stream.Classify(raw)
	if protocol != stream.ProtocolStreamed || (!framesOnError && !is2xx(status)) {
		protocol = stream.ProtocolLegacy
	}

	if protocol == stream.ProtocolStreamed {
		s.consumed = s.framer.Consume(ctx, raw, s.consumed)
		s.framer.Finish(ctx)
	} else {
		s.collector.IncLegacyResponses()
		s.acc.ApplyLegacy(interp.Interpolate(string(raw), s.req.Replacements()), status)
	}

	s.terminal = true
	s.protocol = protocol
	s.httpStatus = status

	switch {
	case !s.req.PublishEnabled():
		s.finishLocked(types.Outcome{Status: types.OutcomeCompletedNoPublish}, nil)
		s.mu.Unlock()
		return
	case protocol == stream.ProtocolLegacy, !s.req.WaitForCookies, s.pending.Pending() == 0:
		s.claimed = true
	default:
		s.logger.Debug("publish deferred until cookies are set", map[string]any{
			"pending_cookies": s.pending.Pending(),
		})
	}
	claimed := s.claimed
	s.mu.Unlock()

	if claimed {
		s.publish()
	}
}

// fail ends the transmission after a main-request failure. Nothing is published.
func (s *Session) fail(err error) {
	s.collector.IncTransmissionFailed()
	s.logger.Error("transmission failed", map[string]any{"error": err.Error()})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminal = true
	s.finishLocked(types.Outcome{Status: types.OutcomeNetworkFailure, Message: err.Error()}, nil)
}

// cookiesSettled runs whenever the pending cookie count returns to zero.
func (s *Session) cookiesSettled() {
	s.mu.Lock()
	ready := s.terminal && !s.claimed &&
		s.protocol == stream.ProtocolStreamed &&
		s.req.PublishEnabled() && s.req.WaitForCookies &&
		s.pending.Pending() == 0
	if ready {
		s.claimed = true
	}
	s.mu.Unlock()

	if ready {
		s.publish()
	}
}

// publish hands the record to the publisher. Callers must have claimed the
// publish under s.mu, which makes this run at most once.
func (s *Session) publish() {
	s.mu.Lock()
	record := s.acc.Record()
	s.mu.Unlock()
	record[types.FieldEvent] = s.req.EventName

	pub := adapter.NewPublication(s.id, s.req.QueueName, record)
	if err := s.publisher.Publish(s.publishCtx, pub); err != nil {
		s.collector.IncPublishErrors()
		s.logger.Error("publish failed", map[string]any{
			"queue": s.req.QueueName,
			"error": err.Error(),
		})
		s.finish(types.Outcome{Status: types.OutcomePublishFailed, Message: err.Error()}, record)
		return
	}

	s.collector.IncTransmissionPublished()
	s.logger.Info("record published", map[string]any{
		"queue":  s.req.QueueName,
		"status": record[types.FieldStatus],
	})
	s.finish(types.Outcome{Status: types.OutcomePublished}, record)
}

func (s *Session) finish(outcome types.Outcome, record types.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked(outcome, record)
}

func (s *Session) finishLocked(outcome types.Outcome, record types.Record) {
	select {
	case <-s.done:
		return
	default:
	}
	s.outcome = outcome
	s.record = record
	close(s.done)
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}
