package client

import (
	"context"
	"net/http"
)

// Authenticator attaches credentials to an attempt. It runs after default
// and request headers are merged, so its writes win. Returning an error
// fails the call before any network I/O; an error wrapping
// ErrUnauthorized is classified as an auth failure.
type Authenticator interface {
	Authenticate(ctx context.Context, req *Request, header http.Header) error
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, req *Request, header http.Header) error

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, req *Request, header http.Header) error {
	return f(ctx, req, header)
}

// Refresher is implemented by authenticators that can renew credentials
// after a 401. Refresh runs once before each replay; a non-nil error ends
// the call with a terminal 401. Unauthorized runs once when a call ends
// with a terminal 401, with the reason as cause.
type Refresher interface {
	Refresh(ctx context.Context, req *Request) error
	Unauthorized(ctx context.Context, req *Request, cause error)
}

// Observer is notified of every terminal failure the Client produces.
type Observer interface {
	OnException(ctx context.Context, f *Failure)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, f *Failure)

// OnException calls f.
func (f ObserverFunc) OnException(ctx context.Context, failure *Failure) {
	f(ctx, failure)
}

// RequestInterceptor may inspect or mutate the outgoing request just
// before it is sent. An error aborts the attempt.
type RequestInterceptor func(ctx context.Context, req *http.Request) error

// ResponseInterceptor may replace the raw response before the Client
// inspects its status. An error fails the call.
type ResponseInterceptor func(ctx context.Context, resp *RawResponse) (*RawResponse, error)
