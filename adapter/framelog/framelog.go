// Package framelog appends publications and transmission results to a
// local file of length-prefixed msgpack frames.
package framelog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pithecene-io/tagrelay/adapter"
	"github.com/pithecene-io/tagrelay/ipc"
	"github.com/pithecene-io/tagrelay/iox"
	"github.com/pithecene-io/tagrelay/types"
)

// Writer appends frames to a record log. Safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	encoder *ipc.FrameEncoder
	closed  bool
}

// Open opens (or creates) the record log at path in append mode.
func Open(path string) (*Writer, error) {
	if path == "" {
		return nil, errors.New("framelog path is required")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open record log: %w", err)
	}
	return &Writer{file: f, encoder: ipc.NewFrameEncoder(f)}, nil
}

// Publish appends a record frame for pub.
func (w *Writer) Publish(ctx context.Context, pub *adapter.Publication) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("framelog: writer closed")
	}
	return w.encoder.WriteRecord(pub)
}

// WriteResult appends a result frame for res.
func (w *Writer) WriteResult(res *types.TransmissionResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("framelog: writer closed")
	}
	return w.encoder.WriteResult(res)
}

// Close syncs and closes the file. Close is idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Sync(); err != nil {
		iox.DiscardClose(w.file)
		return fmt.Errorf("sync record log: %w", err)
	}
	return w.file.Close()
}

// Entry is one decoded frame of a record log. Exactly one field is set.
type Entry struct {
	Publication *adapter.Publication
	Result      *types.TransmissionResult
}

// Read decodes every frame from r. Frames that fail to decode are skipped
// and counted; a truncated or oversized frame ends the read with an error
// alongside the entries decoded so far.
func Read(r io.Reader) (entries []Entry, skipped int, err error) {
	dec := ipc.NewFrameDecoder(r)
	for {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			return entries, skipped, nil
		}
		if err != nil {
			return entries, skipped, err
		}

		frame, err := ipc.DecodeFrame(payload)
		if err != nil {
			if ipc.IsFatalFrameError(err) {
				return entries, skipped, err
			}
			skipped++
			continue
		}
		switch f := frame.(type) {
		case *ipc.RecordFrame:
			pub := f.Publication
			entries = append(entries, Entry{Publication: &pub})
		case *ipc.ResultFrame:
			res := f.Result
			entries = append(entries, Entry{Result: &res})
		}
	}
}

// ReadFile reads the record log at path.
func ReadFile(path string) ([]Entry, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open record log: %w", err)
	}
	defer iox.DiscardClose(f)
	return Read(f)
}

// Verify Writer implements the adapter interface.
var _ adapter.Adapter = (*Writer)(nil)
