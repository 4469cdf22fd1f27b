package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// logTag qualifies every log line emitted by the throttle.
const logTag = "zap.throttle"

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config is the token bucket: RPS tokens are added per second up to Burst.
type Config struct {
	RPS   int `yaml:"rps" validate:"gt=0"`
	Burst int `yaml:"burst" validate:"gt=0"`
}

// Validate reports whether both rates are positive.
func (c Config) Validate() error {
	if c.RPS <= 0 || c.Burst <= 0 {
		return fmt.Errorf("rps[%d] and burst[%d] %w", c.RPS, c.Burst, ErrMustNotBeZero)
	}
	return nil
}

// Option customises the throttle.
type Option func(*throttle)

// WithWaitObserver calls fn with the time each request spent waiting for
// a token, including zero waits.
func WithWaitObserver(fn func(r *http.Request, waited time.Duration)) Option {
	return func(t *throttle) {
		t.observe = fn
	}
}

type throttle struct {
	limiter *rate.Limiter
	cfg     Config
	next    http.RoundTripper
	logFn   func() *slog.Logger
	observe func(*http.Request, time.Duration)
}

// NewRoundTripper returns an http.RoundTripper that throttles outbound
// requests through a token bucket shared by every attempt. logFn resolves
// the logger at request time; a nil result disables exhaustion logging.
func NewRoundTripper(cfg Config, logFn func() *slog.Logger, next http.RoundTripper, opts ...Option) (http.RoundTripper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	t := &throttle{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cfg:     cfg,
		next:    next,
		logFn:   logFn,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	// A cancelled call must not consume a token.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, context.Cause(ctx))
	}

	var waited time.Duration
	logger := t.logFn()
	if logger != nil && t.limiter.Tokens() < 1 {
		logger.Info("throttle tokens exhausted", "tag", logTag, "rate", t.cfg.RPS, "burst", t.cfg.Burst, "path", r.URL.Path)

		defer func() {
			logger.Info("throttle wait complete", "tag", logTag, "waited", waited.String(), "rate", t.cfg.RPS, "burst", t.cfg.Burst)
		}()
	}

	start := time.Now()

	err := t.limiter.Wait(ctx)
	waited = time.Since(start)
	if t.observe != nil {
		t.observe(r, waited)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, context.Cause(ctx))
		}
		// The limiter refuses to wait past the deadline without ending ctx.
		if _, ok := ctx.Deadline(); ok {
			return nil, fmt.Errorf("%w: %w: %w", ErrWaitingFailed, context.DeadlineExceeded, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, context.Cause(ctx))
	}

	return t.next.RoundTrip(r)
}
