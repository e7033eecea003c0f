// Package multi fans one publication out to several adapters.
package multi

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/tagrelay/adapter"
)

// Named pairs an adapter with the name used in error messages.
type Named struct {
	Name    string
	Adapter adapter.Adapter
}

// Adapter publishes to every target in order. The first target is the
// primary: its failure fails the publish. Secondary failures are reported
// through OnError and do not fail the publish.
type Adapter struct {
	targets []Named
	onError func(name string, err error)
}

// Option configures the fan-out adapter.
type Option func(*Adapter)

// WithErrorHandler sets the callback for secondary target failures.
func WithErrorHandler(fn func(name string, err error)) Option {
	return func(a *Adapter) { a.onError = fn }
}

// New creates a fan-out adapter. At least one target is required.
func New(targets []Named, opts ...Option) (*Adapter, error) {
	if len(targets) == 0 {
		return nil, errors.New("multi adapter requires at least one target")
	}
	for i, t := range targets {
		if t.Adapter == nil {
			return nil, fmt.Errorf("target %d (%s) has nil adapter", i, t.Name)
		}
	}
	a := &Adapter{targets: targets, onError: func(string, error) {}}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Publish publishes to the primary, then to each secondary.
func (a *Adapter) Publish(ctx context.Context, pub *adapter.Publication) error {
	primary := a.targets[0]
	if err := primary.Adapter.Publish(ctx, pub); err != nil {
		return fmt.Errorf("%s: %w", primary.Name, err)
	}
	for _, t := range a.targets[1:] {
		if err := t.Adapter.Publish(ctx, pub); err != nil {
			a.onError(t.Name, err)
		}
	}
	return nil
}

// Close closes every target and joins their errors.
func (a *Adapter) Close() error {
	var errs []error
	for _, t := range a.targets {
		if err := t.Adapter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}

var _ adapter.Adapter = (*Adapter)(nil)
