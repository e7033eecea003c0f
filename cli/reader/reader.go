package reader

import (
	"context"
	"fmt"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/tagrelay/adapter/framelog"
	lodeadapter "github.com/pithecene-io/tagrelay/adapter/lode"
)

// Reader abstracts read-only access to published records.
type Reader interface {
	// Records returns the records (and results, where the source keeps
	// them) matching f.
	Records(ctx context.Context, f Filter) (*InspectRecordsResponse, error)
}

// FrameLogReader reads a framelog record file.
type FrameLogReader struct {
	Path string
}

// Records implements Reader. Undecodable frames are counted in Skipped;
// a truncated or oversized frame fails the read.
func (r *FrameLogReader) Records(_ context.Context, f Filter) (*InspectRecordsResponse, error) {
	entries, skipped, err := framelog.ReadFile(r.Path)
	if err != nil {
		return nil, err
	}

	resp := &InspectRecordsResponse{Source: r.Path, Skipped: skipped, Records: []RecordRow{}}
	for _, e := range entries {
		switch {
		case e.Publication != nil:
			p := e.Publication
			if !f.matches(p.Queue, p.Event, p.TransmissionID) {
				continue
			}
			resp.Records = append(resp.Records, RecordRow{
				TransmissionID: p.TransmissionID,
				Queue:          p.Queue,
				Event:          p.Event,
				Status:         recordStatus(p.Record),
				Timestamp:      p.Timestamp,
				Record:         p.Record,
			})
		case e.Result != nil:
			res := e.Result
			if f.TransmissionID != "" && f.TransmissionID != res.TransmissionID {
				continue
			}
			resp.Results = append(resp.Results, ResultRow{
				TransmissionID:   res.TransmissionID,
				Outcome:          string(res.Outcome.Status),
				Message:          res.Outcome.Message,
				HTTPStatus:       res.HTTPStatus,
				Protocol:         res.Protocol,
				FramesDispatched: res.FramesDispatched,
				PendingCookies:   res.PendingCookies,
			})
		}
	}
	return resp, nil
}

// LodeReader reads a Lode archive.
type LodeReader struct {
	Dataset lode.Dataset
	Name    string
}

// Records implements Reader. Archive records that fail validation are
// counted in Skipped.
func (r *LodeReader) Records(ctx context.Context, f Filter) (*InspectRecordsResponse, error) {
	raw, err := lodeadapter.Query(ctx, r.Dataset, lodeadapter.Filter{
		Queue:          f.Queue,
		Event:          f.Event,
		TransmissionID: f.TransmissionID,
	})
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}

	resp := &InspectRecordsResponse{Source: r.Name, Records: []RecordRow{}}
	for _, rec := range raw {
		row, err := ParseArchiveRecord(rec)
		if err != nil {
			resp.Skipped++
			continue
		}
		resp.Records = append(resp.Records, *row)
	}
	return resp, nil
}

// Stats aggregates a records response.
func Stats(resp *InspectRecordsResponse) *RecordStats {
	s := &RecordStats{
		Records:   len(resp.Records),
		Results:   len(resp.Results),
		ByQueue:   map[string]int{},
		ByEvent:   map[string]int{},
		ByOutcome: map[string]int{},
		Skipped:   resp.Skipped,
	}
	for _, r := range resp.Records {
		s.ByQueue[r.Queue]++
		s.ByEvent[r.Event]++
		if r.Status != 0 && (r.Status < 200 || r.Status > 299) {
			s.Non2xx++
		}
	}
	for _, r := range resp.Results {
		s.ByOutcome[r.Outcome]++
		s.PendingMax = max(s.PendingMax, r.PendingCookies)
	}
	return s
}

var (
	_ Reader = (*FrameLogReader)(nil)
	_ Reader = (*LodeReader)(nil)
)
