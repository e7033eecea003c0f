// Package reader provides the read-side data access layer for the tagrelay CLI.
//
// Read-only commands load published records and transmission results from a
// record log (framelog) or a Lode archive through this package, and never
// touch the relay itself.
package reader

import "github.com/pithecene-io/tagrelay/types"

// RecordRow is one published record.
type RecordRow struct {
	TransmissionID string       `json:"transmission_id" yaml:"transmission_id"`
	Queue          string       `json:"queue" yaml:"queue"`
	Event          string       `json:"event" yaml:"event"`
	Status         int          `json:"status" yaml:"status"`
	Timestamp      string       `json:"timestamp" yaml:"timestamp"`
	Record         types.Record `json:"record" yaml:"record"`
}

// ResultRow is the final result of one transmission.
type ResultRow struct {
	TransmissionID   string `json:"transmission_id" yaml:"transmission_id"`
	Outcome          string `json:"outcome" yaml:"outcome"`
	Message          string `json:"message,omitempty" yaml:"message,omitempty"`
	HTTPStatus       int    `json:"http_status" yaml:"http_status"`
	Protocol         string `json:"protocol" yaml:"protocol"`
	FramesDispatched int    `json:"frames_dispatched" yaml:"frames_dispatched"`
	PendingCookies   int    `json:"pending_cookies" yaml:"pending_cookies"`
}

// InspectRecordsResponse is the payload of `tagrelay inspect`.
type InspectRecordsResponse struct {
	Source  string      `json:"source" yaml:"source"`
	Records []RecordRow `json:"records" yaml:"records"`
	Results []ResultRow `json:"results,omitempty" yaml:"results,omitempty"`
	Skipped int         `json:"skipped" yaml:"skipped"`
}

// RecordStats aggregates an InspectRecordsResponse.
type RecordStats struct {
	Records    int            `json:"records" yaml:"records"`
	Results    int            `json:"results" yaml:"results"`
	ByQueue    map[string]int `json:"by_queue" yaml:"by_queue"`
	ByEvent    map[string]int `json:"by_event" yaml:"by_event"`
	ByOutcome  map[string]int `json:"by_outcome" yaml:"by_outcome"`
	Non2xx     int            `json:"non_2xx" yaml:"non_2xx"`
	Skipped    int            `json:"skipped" yaml:"skipped"`
	PendingMax int            `json:"pending_cookies_max" yaml:"pending_cookies_max"`
}

// Filter selects records. Empty fields match everything.
type Filter struct {
	Queue          string
	Event          string
	TransmissionID string
}

func (f Filter) matches(queue, event, id string) bool {
	return (f.Queue == "" || f.Queue == queue) &&
		(f.Event == "" || f.Event == event) &&
		(f.TransmissionID == "" || f.TransmissionID == id)
}
