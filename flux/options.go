package flux

import (
	"context"
	"errors"
	"time"

	"github.com/adamwoolhether/zapflux/client"
)

// SessionFunc returns the current session. It is called on every
// authenticated request and its result is never cached. A nil session
// means none is available.
type SessionFunc func(ctx context.Context) (*Session, error)

// RefreshFunc renews current after a 401. It may perform network I/O,
// but must not go through the Flux that invoked it. A nil session means
// the refresh failed.
type RefreshFunc func(ctx context.Context, current *Session) (*Session, error)

// HeaderBuilder turns a session into the headers to attach.
type HeaderBuilder func(s *Session) (map[string]string, error)

// UnauthorizedFunc runs once when an authenticated call ends with a
// terminal 401.
type UnauthorizedFunc func(ctx context.Context, cause error)

// Defaults for the header built from a session.
const (
	DefaultHeaderName  = "Authorization"
	DefaultTokenPrefix = "Bearer "
)

// Option is a functional option for configuring a [Flux] via [New].
type Option func(*options) error
type options struct {
	refresh        RefreshFunc
	onUnauthorized UnauthorizedFunc
	header         HeaderBuilder
	headerName     string
	tokenPrefix    string
	proactiveSkew  time.Duration
	clientOpts     []client.Option
}

// WithRefresh sets the callback invoked after a 401.
func WithRefresh(fn RefreshFunc) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("refresh func must not be nil")
		}
		o.refresh = fn
		return nil
	}
}

// WithOnUnauthorized sets the hook run when an authenticated call fails
// for good, e.g. to sign the user out.
func WithOnUnauthorized(fn UnauthorizedFunc) Option {
	return func(o *options) error {
		o.onUnauthorized = fn
		return nil
	}
}

// WithHeaderBuilder replaces the header name and prefix scheme.
func WithHeaderBuilder(fn HeaderBuilder) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("header builder must not be nil")
		}
		o.header = fn
		return nil
	}
}

// WithHeader sets the header name and the prefix put before the access
// token, e.g. "X-Api-Key" and "".
func WithHeader(name, prefix string) Option {
	return func(o *options) error {
		if name == "" {
			return errors.New("header name must not be empty")
		}
		o.headerName = name
		o.tokenPrefix = prefix
		return nil
	}
}

// WithProactiveRefresh refreshes a session before it is used when it
// expires within skew.
func WithProactiveRefresh(skew time.Duration) Option {
	return func(o *options) error {
		if skew <= 0 {
			return errors.New("skew must be positive")
		}
		o.proactiveSkew = skew
		return nil
	}
}

// WithClientOptions configures the underlying client.
func WithClientOptions(opts ...client.Option) Option {
	return func(o *options) error {
		o.clientOpts = append(o.clientOpts, opts...)
		return nil
	}
}
