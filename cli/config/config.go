// Package config handles YAML config file loading for tagrelay send.
package config

import (
	"fmt"
	"time"

	"github.com/pithecene-io/tagrelay/types"
)

// Config represents a tagrelay.yaml configuration file.
// All values are optional and act as defaults for tagrelay send flags.
// CLI flags always override config values.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Transmission TransmissionConfig `yaml:"transmission"`
	HTTP         HTTPConfig         `yaml:"http"`
	Publisher    PublisherConfig    `yaml:"publisher"`
}

// ServerConfig locates the tag server.
type ServerConfig struct {
	Domain      string `yaml:"domain"`
	RequestPath string `yaml:"request_path"`
}

// TransmissionConfig holds per-transmission defaults.
// Pointer fields distinguish "unset" from an explicit zero value.
type TransmissionConfig struct {
	EventName      *string `yaml:"event_name,omitempty"`
	Queue          *string `yaml:"queue,omitempty"`
	ConsentKey     string  `yaml:"consent_key"`
	ConsentQueue   string  `yaml:"consent_queue"`
	AlwaysSend     bool    `yaml:"always_send"`
	WaitForCookies *bool   `yaml:"wait_for_cookies,omitempty"`
	Transport      string  `yaml:"transport"`
}

// HTTPConfig holds client settings for the main request and side effects.
type HTTPConfig struct {
	Timeout      Duration          `yaml:"timeout"`
	PixelTimeout Duration          `yaml:"pixel_timeout"`
	BeaconQueue  int               `yaml:"beacon_queue"`
	Headers      map[string]string `yaml:"headers,omitempty"`
}

// PublisherConfig selects where published records go besides the
// in-process data layer.
type PublisherConfig struct {
	Type      string            `yaml:"type"`
	URL       string            `yaml:"url"`
	Channel   string            `yaml:"channel,omitempty"`
	KeyPrefix string            `yaml:"key_prefix,omitempty"`
	MaxLen    int64             `yaml:"max_len,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Timeout   Duration          `yaml:"timeout,omitempty"`
	Retries   *int              `yaml:"retries,omitempty"`
	Path      string            `yaml:"path,omitempty"`
	Storage   StorageConfig     `yaml:"storage"`
}

// StorageConfig holds Lode archive settings for the "lode" publisher.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Request builds a transmission request from the config, starting from the
// canonical defaults.
func (c *Config) Request() types.TransmissionRequest {
	req := types.NewTransmissionRequest(c.Server.Domain, c.Server.RequestPath, nil)
	t := c.Transmission
	if t.EventName != nil {
		req.EventName = *t.EventName
	}
	if t.Queue != nil {
		req.QueueName = *t.Queue
	}
	if t.ConsentKey != "" {
		req.ConsentKey = t.ConsentKey
	}
	if t.ConsentQueue != "" {
		req.ConsentQueue = t.ConsentQueue
	}
	if t.WaitForCookies != nil {
		req.WaitForCookies = *t.WaitForCookies
	}
	if t.Transport != "" {
		req.Transport = types.TransportKind(t.Transport)
	}
	req.AlwaysSend = t.AlwaysSend
	return req
}
