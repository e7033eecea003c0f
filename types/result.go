package types

// TransmissionResult is the observable state of one transmission.
type TransmissionResult struct {
	// TransmissionID identifies the transmission.
	TransmissionID string `json:"transmission_id" yaml:"transmission_id" msgpack:"transmission_id"`
	// Outcome is the final outcome, or pending while a publish is deferred.
	Outcome Outcome `json:"outcome" yaml:"outcome" msgpack:"outcome"`
	// Record is the published record, or the accumulated record so far.
	Record Record `json:"record,omitempty" yaml:"record,omitempty" msgpack:"record,omitempty"`
	// HTTPStatus is the status of the main response, 0 if none arrived.
	HTTPStatus int `json:"http_status" yaml:"http_status" msgpack:"http_status"`
	// Protocol is "legacy" or "streamed" once the response completed.
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty" msgpack:"protocol,omitempty"`
	// FramesDispatched counts frames handed to the merger.
	FramesDispatched int `json:"frames_dispatched" yaml:"frames_dispatched" msgpack:"frames_dispatched"`
	// PendingCookies counts cookie-setting pixels still loading.
	PendingCookies int `json:"pending_cookies" yaml:"pending_cookies" msgpack:"pending_cookies"`
}
