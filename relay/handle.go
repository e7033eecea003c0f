package relay

import (
	"context"
	"fmt"

	"github.com/pithecene-io/tagrelay/types"
)

// Result is the observable state of a transmission.
type Result = types.TransmissionResult

// Handle observes one transmission.
type Handle struct {
	session interface {
		ID() string
		Done() <-chan struct{}
		Result() types.TransmissionResult
	}
}

// ID returns the transmission ID.
func (h *Handle) ID() string {
	return h.session.ID()
}

// Done is closed once the transmission reaches a terminal outcome.
func (h *Handle) Done() <-chan struct{} {
	return h.session.Done()
}

// Result returns the current state without blocking.
func (h *Handle) Result() *Result {
	res := h.session.Result()
	return &res
}

// Wait blocks until the transmission is terminal or ctx ends. The result is
// always returned. The error wraps ErrNotPublished unless the record was
// published or publishing is disabled; when ctx ended first it also wraps
// ctx.Err() and the outcome is pending.
func (h *Handle) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-h.session.Done():
	case <-ctx.Done():
		res := h.Result()
		if res.Outcome.Status.IsTerminal() {
			return res, outcomeErr(res.Outcome)
		}
		return res, fmt.Errorf("%w: publish still pending (%d cookies): %w",
			ErrNotPublished, res.PendingCookies, ctx.Err())
	}

	res := h.Result()
	return res, outcomeErr(res.Outcome)
}

func outcomeErr(o types.Outcome) error {
	switch o.Status {
	case types.OutcomePublished, types.OutcomeCompletedNoPublish:
		return nil
	default:
		if o.Message != "" {
			return fmt.Errorf("%w: %s: %s", ErrNotPublished, o.Status, o.Message)
		}
		return fmt.Errorf("%w: %s", ErrNotPublished, o.Status)
	}
}
