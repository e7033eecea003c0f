package types

// OutcomeStatus is the final state of a transmission.
type OutcomeStatus string

// Outcome statuses.
const (
	// OutcomePublished indicates the record was appended to the target queue.
	OutcomePublished OutcomeStatus = "published"
	// OutcomeAbortedNoConsent indicates the consent gate stopped the transmission.
	OutcomeAbortedNoConsent OutcomeStatus = "aborted_no_consent"
	// OutcomeNetworkFailure indicates the main request failed.
	OutcomeNetworkFailure OutcomeStatus = "network_failure"
	// OutcomePublishFailed indicates the target queue rejected the record.
	OutcomePublishFailed OutcomeStatus = "publish_failed"
	// OutcomeCompletedNoPublish indicates publishing is disabled for the request.
	OutcomeCompletedNoPublish OutcomeStatus = "completed_no_publish"
	// OutcomePending indicates the publish was still deferred when observed.
	OutcomePending OutcomeStatus = "pending"
)

// IsTerminal reports whether the status is final.
func (s OutcomeStatus) IsTerminal() bool {
	return s != OutcomePending && s != ""
}

// Outcome is the outcome of a transmission.
type Outcome struct {
	Status  OutcomeStatus `json:"status" yaml:"status" msgpack:"status"`
	Message string        `json:"message,omitempty" yaml:"message,omitempty" msgpack:"message,omitempty"`
}
