package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tagrelay/adapter/datalayer"
	relayconfig "github.com/pithecene-io/tagrelay/cli/config"
	"github.com/pithecene-io/tagrelay/cli/render"
	"github.com/pithecene-io/tagrelay/iox"
	"github.com/pithecene-io/tagrelay/log"
	"github.com/pithecene-io/tagrelay/metrics"
	"github.com/pithecene-io/tagrelay/relay"
	"github.com/pithecene-io/tagrelay/types"
)

// Exit codes of `tagrelay send`.
const (
	exitSuccess    = 0
	exitError      = 1
	exitNoConsent  = 2
	exitNotSettled = 3
)

// defaultWait bounds how long send waits for the record to publish.
const defaultWait = 60 * time.Second

// SendCommand returns the send command.
// Send is the only command that contacts a tag server.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Send one transmission to a server-side tag endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to tagrelay.yaml (flags override its values)",
			},
			// Server
			&cli.StringFlag{
				Name:  "domain",
				Usage: "Tag server domain, e.g. https://sgtm.example.com",
			},
			&cli.StringFlag{
				Name:  "request-path",
				Usage: "Request path appended to the domain",
			},
			// Payload
			&cli.StringFlag{
				Name:  "payload",
				Usage: "Payload as a JSON object",
				Value: "{}",
			},
			&cli.StringFlag{
				Name:  "payload-file",
				Usage: "Read the payload JSON object from a file",
			},
			// Transmission
			&cli.StringFlag{
				Name:  "event",
				Usage: "Event name of the published record (empty disables publishing)",
				Value: types.DefaultEventName,
			},
			&cli.StringFlag{
				Name:  "queue",
				Usage: "Target queue of the published record (empty disables publishing)",
				Value: types.DefaultQueueName,
			},
			&cli.StringFlag{
				Name:  "consent-key",
				Usage: "Consent flag looked up in the consent queue",
				Value: types.DefaultConsentKey,
			},
			&cli.StringFlag{
				Name:  "consent-queue",
				Usage: "Queue scanned for the consent flag",
				Value: types.DefaultConsentQueue,
			},
			&cli.BoolFlag{
				Name:  "always-send",
				Usage: "Skip the consent gate",
			},
			&cli.BoolFlag{
				Name:  "no-wait-cookies",
				Usage: "Publish without waiting for cookie-setting pixels",
			},
			&cli.StringFlag{
				Name:  "transport",
				Usage: "Transport driver: fetch or streaming",
				Value: string(types.TransportFetch),
			},
			// Data layer
			&cli.StringFlag{
				Name:  "datalayer",
				Usage: "Seed the page queues from a JSON file ({\"queue\": [entries]})",
			},
			&cli.StringFlag{
				Name:  "datalayer-out",
				Usage: "Write the page queues to this file after the transmission",
			},
			// HTTP
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Main request timeout",
				Value: relay.DefaultTimeout,
			},
			&cli.DurationFlag{
				Name:  "pixel-timeout",
				Usage: "Per-pixel load timeout (0 = none)",
			},
			&cli.IntFlag{
				Name:  "beacon-queue",
				Usage: "Beacons allowed in flight before falling back to pixels",
			},
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "How long to wait for the record to publish",
				Value: defaultWait,
			},
			// Publisher
			&cli.StringFlag{
				Name:  "publisher",
				Usage: "Secondary publisher: none, webhook, redis, lode",
				Value: "none",
			},
			&cli.StringFlag{
				Name:  "publisher-url",
				Usage: "Webhook URL or Redis URL",
			},
			&cli.StringFlag{
				Name:  "publisher-channel",
				Usage: "Redis pub/sub channel",
			},
			&cli.DurationFlag{
				Name:  "publisher-timeout",
				Usage: "Per-publish timeout",
			},
			&cli.StringFlag{
				Name:  "lode-backend",
				Usage: "Lode storage backend: fs or s3",
				Value: "fs",
			},
			&cli.StringFlag{
				Name:  "lode-path",
				Usage: "Lode storage path (fs: directory, s3: bucket/prefix)",
			},
			&cli.StringFlag{
				Name:  "record-log",
				Usage: "Append published records and the result to this framelog file",
			},
			// Output
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
				Value: "warn",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
			FormatFlag,
		},
		Action: sendAction,
	}
}

// SendResponse is the output of the send command.
type SendResponse struct {
	Result  *relay.Result    `json:"result" yaml:"result"`
	Metrics metrics.Snapshot `json:"metrics" yaml:"metrics"`
}

func sendAction(c *cli.Context) error {
	var cfg *relayconfig.Config
	if path := c.String("config"); path != "" {
		loaded, err := relayconfig.Load(path)
		if err != nil {
			return cli.Exit(err.Error(), exitError)
		}
		cfg = loaded
	}

	logger, err := log.NewLoggerWithLevel(os.Stderr, c.String("log-level"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid --log-level: %v", err), exitError)
	}
	defer iox.DiscardErr(logger.Sync)

	req, err := requestFromContext(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	layer, err := loadDataLayer(c.String("datalayer"))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	choice := publisherFromContext(c, cfg)
	publisher, records, err := buildPublisher(ctx, layer, choice, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create publisher: %v", err), exitError)
	}

	client, err := newHTTPClient(
		resolveDuration(c, "timeout", configVal(cfg, func(cf *relayconfig.Config) time.Duration { return cf.HTTP.Timeout.Duration })),
		configVal(cfg, func(cf *relayconfig.Config) map[string]string { return cf.HTTP.Headers }),
	)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	collector := metrics.NewCollector(string(req.Transport), choice.kind)
	r, err := relay.New(relay.Config{
		Publisher:    publisher,
		Consent:      layer,
		PixelTimeout: resolveDuration(c, "pixel-timeout", configVal(cfg, func(cf *relayconfig.Config) time.Duration { return cf.HTTP.PixelTimeout.Duration })),
		BeaconBudget: resolveInt(c, "beacon-queue", configVal(cfg, func(cf *relayconfig.Config) int { return cf.HTTP.BeaconQueue })),
	}, relay.WithLogger(logger), relay.WithCollector(collector), relay.WithHTTPClient(client))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	result, code := transmit(ctx, r, req, c.Duration("wait"))

	if records != nil && result != nil {
		if err := records.WriteResult(result); err != nil {
			logger.Warn("failed to write result to record log", map[string]any{"error": err.Error()})
		}
	}
	if err := r.Close(); err != nil {
		logger.Warn("failed to close publisher", map[string]any{"error": err.Error()})
	}
	if out := c.String("datalayer-out"); out != "" {
		if err := writeDataLayer(layer, out); err != nil {
			return cli.Exit(err.Error(), exitError)
		}
	}

	if !c.Bool("quiet") && result != nil {
		rr, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		if err := rr.Render(SendResponse{Result: result, Metrics: collector.Snapshot()}); err != nil {
			return err
		}
	}

	return cli.Exit("", code)
}

// transmit runs one transmission and maps its result to an exit code.
func transmit(ctx context.Context, r *relay.Relay, req types.TransmissionRequest, wait time.Duration) (*relay.Result, int) {
	h, err := r.Transmit(ctx, req)
	if errors.Is(err, relay.ErrNoConsent) {
		return &relay.Result{Outcome: types.Outcome{Status: types.OutcomeAbortedNoConsent}}, exitNoConsent
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, exitError
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	result, _ := h.Wait(waitCtx)
	return result, outcomeToExitCode(result.Outcome.Status)
}

func outcomeToExitCode(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomePublished, types.OutcomeCompletedNoPublish:
		return exitSuccess
	case types.OutcomeAbortedNoConsent:
		return exitNoConsent
	case types.OutcomePending, types.OutcomePublishFailed:
		return exitNotSettled
	default:
		return exitError
	}
}

// requestFromContext builds the transmission request from config and flags.
func requestFromContext(c *cli.Context, cfg *relayconfig.Config) (types.TransmissionRequest, error) {
	req := types.NewTransmissionRequest("", "", nil)
	if cfg != nil {
		req = cfg.Request()
	}

	req.BaseURL = resolveString(c, "domain", req.BaseURL)
	req.RequestPath = resolveString(c, "request-path", req.RequestPath)
	if c.IsSet("event") {
		req.EventName = c.String("event")
	}
	if c.IsSet("queue") {
		req.QueueName = c.String("queue")
	}
	if c.IsSet("consent-key") {
		req.ConsentKey = c.String("consent-key")
	}
	if c.IsSet("consent-queue") {
		req.ConsentQueue = c.String("consent-queue")
	}
	req.AlwaysSend = resolveBool(c, "always-send", req.AlwaysSend)
	if c.IsSet("no-wait-cookies") {
		req.WaitForCookies = !c.Bool("no-wait-cookies")
	}

	kind, err := types.ParseTransportKind(resolveString(c, "transport", string(req.Transport)))
	if err != nil {
		return req, err
	}
	req.Transport = kind

	payload, err := loadPayload(c.String("payload"), c.String("payload-file"))
	if err != nil {
		return req, err
	}
	req.Payload = payload

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func publisherFromContext(c *cli.Context, cfg *relayconfig.Config) publisherChoice {
	pc := configVal(cfg, func(cf *relayconfig.Config) relayconfig.PublisherConfig { return cf.Publisher })
	return publisherChoice{
		kind:          resolveString(c, "publisher", pc.Type),
		url:           resolveString(c, "publisher-url", pc.URL),
		channel:       resolveString(c, "publisher-channel", pc.Channel),
		keyPrefix:     pc.KeyPrefix,
		maxLen:        pc.MaxLen,
		headers:       pc.Headers,
		timeout:       resolveDuration(c, "publisher-timeout", pc.Timeout.Duration),
		retries:       pc.Retries,
		lodeBackend:   resolveString(c, "lode-backend", pc.Storage.Backend),
		lodePath:      resolveString(c, "lode-path", pc.Storage.Path),
		lodeDataset:   pc.Storage.Dataset,
		lodeRegion:    pc.Storage.Region,
		lodeEndpoint:  pc.Storage.Endpoint,
		lodePathStyle: pc.Storage.S3PathStyle,
		recordLog:     resolveString(c, "record-log", pc.Path),
	}
}

// loadPayload parses the payload JSON object from a file, or from inline JSON.
func loadPayload(inline, path string) (map[string]any, error) {
	data := []byte(inline)
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		data = b
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid payload JSON (must be an object): %w", err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

func loadDataLayer(path string) (*datalayer.Layer, error) {
	if path == "" {
		return datalayer.New(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data layer: %w", err)
	}
	defer iox.DiscardClose(f)
	return datalayer.Load(f)
}

func writeDataLayer(layer *datalayer.Layer, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create data layer output: %w", err)
	}
	defer iox.CloseInto(f, &err)
	if _, err := layer.WriteTo(f); err != nil {
		return fmt.Errorf("write data layer: %w", err)
	}
	return nil
}

// newHTTPClient builds the main-request client. Its cookie jar is shared
// with pixels and beacons; headers are added to every request it sends.
func newHTTPClient(timeout time.Duration, headers map[string]string) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	var rt http.RoundTripper = http.DefaultTransport
	if len(headers) > 0 {
		rt = &headerTransport{base: rt, headers: headers}
	}
	return &http.Client{Jar: jar, Timeout: timeout, Transport: rt}, nil
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
