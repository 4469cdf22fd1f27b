package client

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/zapflux/client/throttle"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	cfg                  Config
	client               *http.Client
	rt                   http.RoundTripper
	logger               *slog.Logger
	tracer               trace.Tracer
	registerer           prometheus.Registerer
	authenticator        Authenticator
	observer             Observer
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

// WithConfig replaces the whole declarative configuration, e.g. one
// loaded from a file. Options applied after it still take effect.
func WithConfig(cfg Config) Option {
	return func(o *options) error {
		o.cfg = cfg
		return nil
	}
}

// WithClient replaces the default [http.Client] used by the [Client].
func WithClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		o.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
// This is the boundary where the actual network I/O happens.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.rt = rt
		return nil
	}
}

// WithBaseURL resolves relative request targets against rawURL.
func WithBaseURL(rawURL string) Option {
	return func(o *options) error {
		o.cfg.BaseURL = rawURL
		return nil
	}
}

// WithDefaultHeaders sets headers attached to every request before the
// request's own headers.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(o *options) error {
		if o.cfg.DefaultHeaders == nil {
			o.cfg.DefaultHeaders = make(map[string]string, len(headers))
		}
		maps.Copy(o.cfg.DefaultHeaders, headers)
		return nil
	}
}

// WithTimeout sets the overall request timeout on the underlying [http.Client].
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.cfg.Timeout = d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(o *options) error {
		o.cfg.UserAgent = header
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		cfg := throttle.Config{RPS: rps, Burst: burst}
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.cfg.Throttle = &cfg
		return nil
	}
}

// WithNoFollowRedirects prevents the [Client] from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(o *options) error {
		o.cfg.NoFollowRedirects = true
		return nil
	}
}

// WithMaxRedirects caps the number of redirects followed per request.
func WithMaxRedirects(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("max redirects must not be negative")
		}
		o.cfg.MaxRedirects = n
		return nil
	}
}

// WithMaxAuthRetries sets how many times a 401 response is retried when
// an [Authenticator] is configured.
func WithMaxAuthRetries(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("max auth retries must not be negative")
		}
		o.cfg.MaxAuthRetries = n
		return nil
	}
}

// WithErrorSafety controls whether failures are returned as error
// responses (true, the default) or as *Failure errors (false).
func WithErrorSafety(enabled bool) Option {
	return func(o *options) error {
		o.cfg.ErrorSafety = enabled
		return nil
	}
}

// WithEncoderWorkers bounds concurrent JSON and multipart encodings.
func WithEncoderWorkers(n int) Option {
	return func(o *options) error {
		o.cfg.EncoderWorkers = n
		return nil
	}
}

// WithLogFlags selects which send-cycle boundaries are logged.
func WithLogFlags(flags LogFlags) Option {
	return func(o *options) error {
		o.cfg.Log = flags
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithTracer records a span per attempt on tracer and propagates the
// trace context in outgoing headers.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithMetrics registers request metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) error {
		if reg == nil {
			return errors.New("registerer must not be nil")
		}
		o.registerer = reg
		return nil
	}
}

// WithAuthenticator installs the hook that attaches credentials before
// each attempt and enables the 401 retry.
func WithAuthenticator(a Authenticator) Option {
	return func(o *options) error {
		if a == nil {
			return errors.New("authenticator must not be nil")
		}
		o.authenticator = a
		return nil
	}
}

// WithObserver is notified of every failure the Client produces.
func WithObserver(obs Observer) Option {
	return func(o *options) error {
		o.observer = obs
		return nil
	}
}

// WithRequestInterceptor appends a hook run on the built request just
// before it is sent.
func WithRequestInterceptor(fn RequestInterceptor) Option {
	return func(o *options) error {
		if fn != nil {
			o.requestInterceptors = append(o.requestInterceptors, fn)
		}
		return nil
	}
}

// WithResponseInterceptor appends a hook that may rewrite every response
// before the Client inspects it.
func WithResponseInterceptor(fn ResponseInterceptor) Option {
	return func(o *options) error {
		if fn != nil {
			o.responseInterceptors = append(o.responseInterceptors, fn)
		}
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}
