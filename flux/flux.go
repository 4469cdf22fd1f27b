// Package flux layers session-based authentication on top of the client
// package. It attaches credentials from a session factory to every
// authenticated request and, when the server answers 401, refreshes the
// session and replays the call exactly once.
package flux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adamwoolhether/zapflux/body"
	"github.com/adamwoolhether/zapflux/client"
)

const logTag = "flux.session"

// Flux owns the live client.Client and acts as its authenticator.
type Flux struct {
	client         *client.Client
	session        SessionFunc
	refresh        RefreshFunc
	onUnauthorized UnauthorizedFunc
	header         HeaderBuilder
	skew           time.Duration
	logger         *slog.Logger

	group singleflight.Group

	// replay holds the refreshed session for the retry of a call. Requests
	// sent on Client() directly must not be shared by concurrent calls.
	replay sync.Map // *client.Request -> *Session
}

// New builds the Flux and the client it owns. Auth retries are pinned to
// one replay per call.
func New(session SessionFunc, optFns ...Option) (*Flux, error) {
	if session == nil {
		return nil, errors.New("session func must not be nil")
	}

	opts := options{
		headerName:  DefaultHeaderName,
		tokenPrefix: DefaultTokenPrefix,
	}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying flux option: %w", err)
		}
	}

	f := &Flux{
		session:        session,
		refresh:        opts.refresh,
		onUnauthorized: opts.onUnauthorized,
		header:         opts.header,
		skew:           opts.proactiveSkew,
	}
	if f.header == nil {
		f.header = prefixHeader(opts.headerName, opts.tokenPrefix)
	}

	clientOpts := append(opts.clientOpts,
		client.WithAuthenticator(f),
		client.WithMaxAuthRetries(1),
	)

	c, err := client.Build(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}
	f.client = c
	f.logger = c.Logger()

	return f, nil
}

func prefixHeader(name, prefix string) HeaderBuilder {
	return func(s *Session) (map[string]string, error) {
		return map[string]string{name: prefix + s.AccessToken}, nil
	}
}

// Client returns the underlying client.
func (f *Flux) Client() *client.Client {
	return f.client
}

// Dispose disposes the underlying client.
func (f *Flux) Dispose() {
	f.client.Dispose()
}

// Authenticate implements client.Authenticator. Requests that do not
// require auth are sent as is. For the others a missing session fails
// the call before it reaches the network.
func (f *Flux) Authenticate(ctx context.Context, req *client.Request, header http.Header) error {
	if !req.RequiresAuth {
		return nil
	}

	s, ok := f.replay.LoadAndDelete(req)
	session, _ := s.(*Session)
	if !ok {
		var err error
		session, err = f.current(ctx)
		if err != nil {
			return err
		}
	}

	if !session.Valid() {
		return fmt.Errorf("%w: %w", client.ErrUnauthorized, ErrNoSession)
	}

	h, err := f.header(session)
	if err != nil {
		return fmt.Errorf("%w: building header: %w", client.ErrUnauthorized, err)
	}
	for k, v := range h {
		header.Set(k, v)
	}

	return nil
}

// current asks the factory for the session, refreshing it first when it
// is about to expire and proactive refresh is enabled.
func (f *Flux) current(ctx context.Context) (*Session, error) {
	s, err := f.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", client.ErrUnauthorized, ErrNoSession, err)
	}

	if f.skew > 0 && f.refresh != nil && s.Valid() && s.ExpiresWithin(time.Now(), f.skew) {
		fresh, err := f.renew(ctx, s)
		if err != nil {
			f.logger.Info("proactive refresh failed", "tag", logTag, "error", err)
			return s, nil
		}
		return fresh, nil
	}

	return s, nil
}

// Refresh implements client.Refresher. Concurrent refreshes share one
// call to the refresh callback.
func (f *Flux) Refresh(ctx context.Context, req *client.Request) error {
	if !req.RequiresAuth {
		return errors.New("request is not authenticated")
	}
	if f.refresh == nil {
		return fmt.Errorf("%w: no refresh func", ErrRefreshFailed)
	}

	s, err := f.session(ctx)
	if err != nil {
		s = nil
	}

	fresh, err := f.renew(ctx, s)
	if err != nil {
		return err
	}
	f.replay.Store(req, fresh)

	f.logger.Info("session refreshed", "tag", logTag)

	return nil
}

// renew runs the refresh callback once for every caller waiting on it.
// The shared call does not inherit the cancellation of whichever caller
// started it; each caller stops waiting when its own ctx is done.
func (f *Flux) renew(ctx context.Context, current *Session) (*Session, error) {
	ch := f.group.DoChan("refresh", func() (any, error) {
		s, err := f.refresh(context.WithoutCancel(ctx), current)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		}
		if !s.Valid() {
			return nil, ErrRefreshFailed
		}
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// Unauthorized implements client.Refresher.
func (f *Flux) Unauthorized(ctx context.Context, req *client.Request, cause error) {
	f.replay.Delete(req)

	if !req.RequiresAuth {
		return
	}

	f.logger.Info("session rejected", "tag", logTag, "error", cause)
	if f.onUnauthorized != nil {
		f.onUnauthorized(ctx, cause)
	}
}

// Send sends req through the client owned by f. The same req may be sent
// by several goroutines at once.
func Send[T any](ctx context.Context, f *Flux, req *client.Request, decode client.Decoder[T]) (*client.Response[T], error) {
	if req == nil {
		return client.Send(ctx, f.client, req, decode)
	}

	// The replay slot is keyed by request, so every call gets its own.
	call := *req
	defer f.replay.Delete(&call)

	return client.Send(ctx, f.client, &call, decode)
}

// Get sends an authenticated GET to target and decodes the JSON body into T.
func Get[T any](ctx context.Context, f *Flux, target string, opts ...client.RequestOption) (*client.Response[T], error) {
	return do[T](ctx, f, http.MethodGet, target, nil, opts)
}

// Post sends an authenticated POST of b to target.
func Post[T any](ctx context.Context, f *Flux, target string, b body.Body, opts ...client.RequestOption) (*client.Response[T], error) {
	return do[T](ctx, f, http.MethodPost, target, b, opts)
}

// Put sends an authenticated PUT of b to target.
func Put[T any](ctx context.Context, f *Flux, target string, b body.Body, opts ...client.RequestOption) (*client.Response[T], error) {
	return do[T](ctx, f, http.MethodPut, target, b, opts)
}

// Patch sends an authenticated PATCH of b to target.
func Patch[T any](ctx context.Context, f *Flux, target string, b body.Body, opts ...client.RequestOption) (*client.Response[T], error) {
	return do[T](ctx, f, http.MethodPatch, target, b, opts)
}

// Delete sends an authenticated DELETE to target.
func Delete[T any](ctx context.Context, f *Flux, target string, opts ...client.RequestOption) (*client.Response[T], error) {
	return do[T](ctx, f, http.MethodDelete, target, nil, opts)
}

func do[T any](ctx context.Context, f *Flux, method, target string, b body.Body, opts []client.RequestOption) (*client.Response[T], error) {
	reqOpts := append([]client.RequestOption{client.WithAuth(), client.WithBody(b)}, opts...)

	req, err := client.NewRequest(method, target, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	return Send(ctx, f, req, client.JSONDecoder[T]())
}
