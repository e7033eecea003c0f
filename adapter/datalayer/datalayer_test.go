package datalayer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pithecene-io/tagrelay/adapter"
	"github.com/pithecene-io/tagrelay/types"
)

func TestLayer_PublishCreatesQueue(t *testing.T) {
	l := New()
	if l.Entries("dataLayer") != nil {
		t.Fatal("queue should not exist yet")
	}

	pub := adapter.NewPublication("tx-1", "dataLayer", types.Record{"status": 200, "event": "page_view_response"})
	if err := l.Publish(t.Context(), pub); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	entries := l.Entries("dataLayer")
	if len(entries) != 1 {
		t.Fatalf("entries = %v", entries)
	}
	rec, ok := entries[0].(types.Record)
	if !ok || rec.Event() != "page_view_response" {
		t.Errorf("entry = %#v", entries[0])
	}
}

func TestLayer_PublishAppends(t *testing.T) {
	l := New()
	l.Push("dataLayer", map[string]any{"Google Analytics": true})

	_ = l.Publish(t.Context(), adapter.NewPublication("tx-1", "dataLayer", types.Record{"a": 1}))
	_ = l.Publish(t.Context(), adapter.NewPublication("tx-2", "dataLayer", types.Record{"b": 2}))

	if got := l.Len("dataLayer"); got != 3 {
		t.Errorf("Len = %d, want 3", got)
	}
}

func TestLayer_PublishErrors(t *testing.T) {
	l := New()
	if err := l.Publish(t.Context(), &adapter.Publication{TransmissionID: "tx"}); err == nil {
		t.Error("expected error for empty queue name")
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := l.Publish(ctx, adapter.NewPublication("tx", "q", types.Record{})); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestLayer_EntriesIsACopy(t *testing.T) {
	l := New()
	l.Push("q", "a")

	entries := l.Entries("q")
	entries[0] = "mutated"

	if l.Entries("q")[0] != "a" {
		t.Error("Entries must return a copy")
	}
}

func TestLoadAndWriteTo(t *testing.T) {
	l, err := Load(strings.NewReader(`{"dataLayer":[{"Google Analytics":true},"js"]}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := l.Len("dataLayer"); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}

	var buf bytes.Buffer
	if _, err := l.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	again, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load after WriteTo: %v", err)
	}
	if got := again.Len("dataLayer"); got != 2 {
		t.Errorf("Len after round trip = %d, want 2", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	if _, err := Load(strings.NewReader(`[1,2]`)); err == nil {
		t.Error("expected error for non-object layer")
	}
}
