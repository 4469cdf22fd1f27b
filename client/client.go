package client

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/zapflux/body"
	"github.com/adamwoolhether/zapflux/cancel"
	"github.com/adamwoolhether/zapflux/client/throttle"
)

// Log tags qualifying the send-cycle boundaries.
const (
	tagRequest  = "zap.request"
	tagResponse = "zap.response"
	tagError    = "zap.error"
	tagRetry    = "zap.retry"
)

// Client wraps the std-lib *http.Client and drives the send cycle of
// every logical call. Only one undisposed Client exists at a time.
type Client struct {
	hc      *http.Client
	cfg     Config
	baseURL *url.URL
	logger  *slog.Logger
	encoder *body.Encoder
	tokens  *cancel.Registry
	tracer  trace.Tracer
	metrics *metrics

	auth                 Authenticator
	observer             Observer
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor

	disposed atomic.Bool
}

var live struct {
	mu     sync.Mutex
	client *Client
}

// Build creates the Client from the default configuration and optFns.
// It returns ErrAlreadyExists while a previously built Client has not
// been disposed.
func Build(optFns ...Option) (*Client, error) {
	opts := options{cfg: DefaultConfig()}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	cfg := opts.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client := &Client{
		cfg:                  cfg,
		logger:               slog.Default(),
		encoder:              body.NewEncoder(cfg.EncoderWorkers),
		tokens:               cancel.NewRegistry(),
		tracer:               defaultTracer(),
		auth:                 opts.authenticator,
		observer:             opts.observer,
		requestInterceptors:  opts.requestInterceptors,
		responseInterceptors: opts.responseInterceptors,
	}

	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing base url: %w", err)
		}
		client.baseURL = u
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}
	if opts.tracer != nil {
		client.tracer = opts.tracer
	}
	if opts.registerer != nil {
		m, err := newMetrics(opts.registerer)
		if err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		client.metrics = m
	}

	// Never mutate a caller-supplied client.
	hc := &http.Client{}
	if opts.client != nil {
		cpy := *opts.client
		hc = &cpy
	}
	hc.Timeout = cfg.Timeout
	hc.CheckRedirect = checkRedirect(RedirectPolicy{Follow: !cfg.NoFollowRedirects, Max: cfg.MaxRedirects})

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case hc.Transport != nil:
		transport = hc.Transport
	default:
		transport = http.DefaultTransport
	}
	if cfg.UserAgent != "" {
		transport = userAgent{value: cfg.UserAgent, base: transport}
	}
	if cfg.Throttle != nil {
		rt, err := throttle.NewRoundTripper(*cfg.Throttle, func() *slog.Logger { return client.logger }, transport,
			throttle.WithWaitObserver(client.metrics.recordThrottleWait))
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	hc.Transport = transport
	client.hc = hc

	live.mu.Lock()
	defer live.mu.Unlock()

	if live.client != nil {
		return nil, ErrAlreadyExists
	}
	live.client = client

	return client, nil
}

// Default returns the live Client, or ErrNoClient.
func Default() (*Client, error) {
	live.mu.Lock()
	defer live.mu.Unlock()

	if live.client == nil {
		return nil, ErrNoClient
	}

	return live.client, nil
}

// Dispose cancels every in-flight call, releases idle connections and
// frees the slot so a new Client can be built. Calling it again is a
// no-op.
func (c *Client) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}

	n := c.tokens.Close("client disposed")
	c.hc.CloseIdleConnections()

	live.mu.Lock()
	if live.client == c {
		live.client = nil
	}
	live.mu.Unlock()

	c.logger.Info("client disposed", "tag", tagRequest, "cancelled", n)
}

// CancelAll cancels every call currently in flight on c and returns how
// many were cancelled.
func (c *Client) CancelAll(reason string) int {
	return c.tokens.CancelAll(reason)
}

// Config returns the resolved configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Logger returns the logger the Client writes to.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// URL creates a url.URL for use as a request target.
// It's just a convenience method that wraps the public URL func.
func (c *Client) URL(scheme, host, path string, opts ...URLOption) *url.URL {
	return URL(scheme, host, path, opts...)
}
