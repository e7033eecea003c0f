package reader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/tagrelay/adapter"
	"github.com/pithecene-io/tagrelay/adapter/framelog"
	lodeadapter "github.com/pithecene-io/tagrelay/adapter/lode"
	"github.com/pithecene-io/tagrelay/types"
)

func writeFrameLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.tlog")
	w, err := framelog.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()
	pubs := []*adapter.Publication{
		adapter.NewPublication("tx-1", "dataLayer", types.Record{"event": "page_view_response", "status": 200}),
		adapter.NewPublication("tx-2", "dataLayer", types.Record{"event": "page_view_response", "status": 500}),
		adapter.NewPublication("tx-3", "otherLayer", types.Record{"event": "purchase_response", "status": 201}),
	}
	for _, p := range pubs {
		if err := w.Publish(ctx, p); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	for _, id := range []string{"tx-1", "tx-2", "tx-3"} {
		if err := w.WriteResult(&types.TransmissionResult{
			TransmissionID: id,
			Outcome:        types.Outcome{Status: types.OutcomePublished},
		}); err != nil {
			t.Fatalf("WriteResult() error = %v", err)
		}
	}
	if err := w.WriteResult(&types.TransmissionResult{
		TransmissionID: "tx-4",
		Outcome:        types.Outcome{Status: types.OutcomePending},
		PendingCookies: 2,
	}); err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return path
}

func TestFrameLogReader_Records(t *testing.T) {
	r := &FrameLogReader{Path: writeFrameLog(t)}

	resp, err := r.Records(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(resp.Records) != 3 || len(resp.Results) != 4 {
		t.Fatalf("records = %d, results = %d; want 3, 4", len(resp.Records), len(resp.Results))
	}
	if resp.Records[1].Status != 500 {
		t.Errorf("records[1].Status = %d, want 500", resp.Records[1].Status)
	}

	filtered, err := r.Records(context.Background(), Filter{Queue: "dataLayer"})
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(filtered.Records) != 2 {
		t.Errorf("filtered records = %d, want 2", len(filtered.Records))
	}

	byID, err := r.Records(context.Background(), Filter{TransmissionID: "tx-3"})
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(byID.Records) != 1 || len(byID.Results) != 1 {
		t.Errorf("byID = %d records, %d results; want 1, 1", len(byID.Records), len(byID.Results))
	}
}

func TestFrameLogReader_MissingFile(t *testing.T) {
	r := &FrameLogReader{Path: filepath.Join(t.TempDir(), "nope.tlog")}
	if _, err := r.Records(context.Background(), Filter{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStats(t *testing.T) {
	r := &FrameLogReader{Path: writeFrameLog(t)}
	resp, err := r.Records(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}

	s := Stats(resp)
	if s.Records != 3 || s.Results != 4 {
		t.Errorf("Records = %d, Results = %d", s.Records, s.Results)
	}
	if s.ByQueue["dataLayer"] != 2 || s.ByQueue["otherLayer"] != 1 {
		t.Errorf("ByQueue = %v", s.ByQueue)
	}
	if s.ByEvent["page_view_response"] != 2 {
		t.Errorf("ByEvent = %v", s.ByEvent)
	}
	if s.ByOutcome["published"] != 3 || s.ByOutcome["pending"] != 1 {
		t.Errorf("ByOutcome = %v", s.ByOutcome)
	}
	if s.Non2xx != 1 {
		t.Errorf("Non2xx = %d, want 1", s.Non2xx)
	}
	if s.PendingMax != 2 {
		t.Errorf("PendingMax = %d, want 2", s.PendingMax)
	}
}

func TestLodeReader_Records(t *testing.T) {
	ctx := context.Background()
	store := lode.NewMemory()
	factory := func() (lode.Store, error) { return store, nil }

	a, err := lodeadapter.NewWithFactory(lodeadapter.Config{}, factory)
	if err != nil {
		t.Fatalf("NewWithFactory() error = %v", err)
	}
	for _, id := range []string{"tx-1", "tx-2"} {
		pub := adapter.NewPublication(id, "dataLayer", types.Record{"event": "page_view_response", "status": 200})
		if err := a.Publish(ctx, pub); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	ds, err := lodeadapter.NewDataset(lodeadapter.DefaultDataset, factory)
	if err != nil {
		t.Fatalf("NewDataset() error = %v", err)
	}
	r := &LodeReader{Dataset: ds, Name: "memory"}
	resp, err := r.Records(ctx, Filter{TransmissionID: "tx-2"})
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(resp.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(resp.Records))
	}
	row := resp.Records[0]
	if row.Queue != "dataLayer" || row.Event != "page_view_response" || row.Status != 200 {
		t.Errorf("row = %+v", row)
	}
}
