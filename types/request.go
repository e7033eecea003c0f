// Package types defines core domain types for the tag relay.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"strings"
)

// TransportKind selects the transport driver used for a transmission.
type TransportKind string

// Transport kinds.
const (
	// TransportFetch issues one request and processes the body once it resolves.
	TransportFetch TransportKind = "fetch"
	// TransportStreaming processes frames on every progress notification.
	TransportStreaming TransportKind = "streaming"
)

// ParseTransportKind parses a transport name. Empty selects fetch.
func ParseTransportKind(s string) (TransportKind, error) {
	switch TransportKind(strings.ToLower(s)) {
	case TransportFetch, "":
		return TransportFetch, nil
	case TransportStreaming:
		return TransportStreaming, nil
	default:
		return "", fmt.Errorf("invalid transport: %q (must be fetch or streaming)", s)
	}
}

// Canonical defaults for TransmissionRequest flags.
const (
	DefaultEventName    = "page_view_response"
	DefaultQueueName    = "dataLayer"
	DefaultConsentKey   = "Google Analytics"
	DefaultConsentQueue = "dataLayer"
)

// SetCookiePath is the path suffix that marks a cookie-setting pixel.
const SetCookiePath = "/_set_cookie"

// TransmissionRequest describes one transmission to the tag server.
// It is treated as immutable once Transmit has been called.
type TransmissionRequest struct {
	// BaseURL is the tag server domain, e.g. "https://sgtm.example.com".
	BaseURL string
	// RequestPath is appended verbatim to BaseURL.
	RequestPath string
	// Payload is JSON-serialized into the request body.
	Payload map[string]any

	// EventName is set as the "event" field of the published record.
	EventName string
	// QueueName is the target queue receiving the published record.
	QueueName string
	// WaitForCookies defers publishing until every cookie-setting pixel completed.
	WaitForCookies bool
	// Transport selects the driver.
	Transport TransportKind

	// ConsentKey is the consent flag looked up in ConsentQueue.
	ConsentKey string
	// ConsentQueue is the queue scanned for the consent flag.
	ConsentQueue string
	// AlwaysSend skips the consent gate.
	AlwaysSend bool
}

// NewTransmissionRequest returns a request with the canonical defaults applied.
func NewTransmissionRequest(baseURL, requestPath string, payload map[string]any) TransmissionRequest {
	return TransmissionRequest{
		BaseURL:        baseURL,
		RequestPath:    requestPath,
		Payload:        payload,
		EventName:      DefaultEventName,
		QueueName:      DefaultQueueName,
		WaitForCookies: true,
		Transport:      TransportFetch,
		ConsentKey:     DefaultConsentKey,
		ConsentQueue:   DefaultConsentQueue,
	}
}

// Validate checks that the request can be transmitted.
func (r *TransmissionRequest) Validate() error {
	if r.BaseURL == "" {
		return errors.New("transmission requires a base URL")
	}
	if _, err := ParseTransportKind(string(r.Transport)); err != nil {
		return err
	}
	if !r.AlwaysSend && r.ConsentKey == "" {
		return errors.New("transmission requires a consent key unless always-send is set")
	}
	return nil
}

// Endpoint returns the URL the payload is posted to.
func (r *TransmissionRequest) Endpoint() string {
	return r.BaseURL + r.RequestPath
}

// CookiePrefix returns the URL prefix identifying cookie-setting pixels.
// Exactly one trailing slash is trimmed from BaseURL.
func (r *TransmissionRequest) CookiePrefix() string {
	return strings.TrimSuffix(r.BaseURL, "/") + SetCookiePath
}

// PublishEnabled reports whether the transmission publishes to a queue.
func (r *TransmissionRequest) PublishEnabled() bool {
	return r.EventName != "" && r.QueueName != ""
}

// Replacements returns the template mapping applied to response text.
func (r *TransmissionRequest) Replacements() map[string]string {
	return map[string]string{"transport_url": r.BaseURL}
}

// TransmissionMeta identifies a transmission in logs and published records.
type TransmissionMeta struct {
	TransmissionID string
	EventName      string
	Transport      TransportKind
}
