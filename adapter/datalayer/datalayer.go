// Package datalayer implements the in-page named queues as an adapter.
//
// A Layer holds every named queue of a page. Consent entries are read from
// it and published records are appended to it. The target queue is created
// on first publish.
package datalayer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/pithecene-io/tagrelay/adapter"
)

// Layer is a set of named append-only queues. Safe for concurrent use.
type Layer struct {
	mu     sync.Mutex
	queues map[string][]any
}

// New creates an empty layer.
func New() *Layer {
	return &Layer{queues: make(map[string][]any)}
}

// Load reads a layer from JSON of the form {"queue": [entries...]}.
func Load(r io.Reader) (*Layer, error) {
	var queues map[string][]any
	if err := json.NewDecoder(r).Decode(&queues); err != nil {
		return nil, fmt.Errorf("decode data layer: %w", err)
	}
	l := New()
	for name, entries := range queues {
		l.queues[name] = entries
	}
	return l, nil
}

// Push appends entries to queue, creating it if absent.
func (l *Layer) Push(queue string, entries ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queues[queue] = append(l.queues[queue], entries...)
}

// Entries returns a copy of queue's entries, nil if it does not exist.
func (l *Layer) Entries(queue string) []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries, ok := l.queues[queue]
	if !ok {
		return nil
	}
	return append([]any(nil), entries...)
}

// Len returns the number of entries in queue.
func (l *Layer) Len(queue string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues[queue])
}

// Publish appends the publication's record to its queue.
func (l *Layer) Publish(ctx context.Context, pub *adapter.Publication) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("datalayer: %w", err)
	}
	if pub.Queue == "" {
		return fmt.Errorf("datalayer: publication %s has no queue", pub.TransmissionID)
	}
	l.Push(pub.Queue, pub.Record)
	return nil
}

// WriteTo writes every queue as JSON in the form accepted by Load.
func (l *Layer) WriteTo(w io.Writer) (int64, error) {
	l.mu.Lock()
	data, err := json.MarshalIndent(l.queues, "", "  ")
	l.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("encode data layer: %w", err)
	}
	n, err := w.Write(append(data, '\n'))
	return int64(n), err
}

// Close is a no-op.
func (l *Layer) Close() error {
	return nil
}

// Verify Layer implements the adapter interface.
var _ adapter.Adapter = (*Layer)(nil)
