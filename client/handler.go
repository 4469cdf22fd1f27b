package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/adamwoolhether/zapflux/body"
	"github.com/adamwoolhether/zapflux/cancel"
	"github.com/adamwoolhether/zapflux/progress"
)

// HeaderRequestID identifies one logical call across its attempts.
const HeaderRequestID = "X-Request-Id"

// Do sends req and returns the raw response body as Data.
func (c *Client) Do(ctx context.Context, req *Request) (*Response[[]byte], error) {
	return Send(ctx, c, req, BytesDecoder)
}

// Send runs the send cycle of req on c and decodes a successful body with
// decode, or as JSON when decode is nil.
//
// With error safety enabled every failure, including a non-2xx status, is
// returned as a Response whose HasError reports true and the error is nil.
// With error safety disabled the failure is returned as a *Failure. A
// disposed Client always returns ErrDisposed.
func Send[T any](ctx context.Context, c *Client, req *Request, decode Decoder[T]) (*Response[T], error) {
	if decode == nil {
		decode = JSONDecoder[T]()
	}

	var data T
	raw, attempts, err := c.execute(ctx, req, func(raw *RawResponse) error {
		v, err := decode(raw.Body)
		if err != nil {
			return err
		}
		data = v
		return nil
	})
	if err != nil {
		f, ok := errors.AsType[*Failure](err)
		if !ok {
			return nil, err
		}
		if !c.cfg.ErrorSafety {
			return nil, f
		}
		return failureResponse[T](req, raw, f, attempts), nil
	}

	return successResponse(raw, data), nil
}

// call holds what stays fixed across the attempts of one logical call.
type call struct {
	req       *Request
	token     *cancel.Token
	requestID string
	target    *url.URL
	enc       body.Encoded
	progress  progress.Func
	logger    *slog.Logger
}

// execute drives the Building, Sending, Intercepting and Retrying states.
// The returned error is a *Failure unless c or req could not be used at
// all. accept decodes a successful response; its error is a parsing
// failure.
func (c *Client) execute(ctx context.Context, req *Request, accept func(*RawResponse) error) (*RawResponse, int, error) {
	if c.disposed.Load() {
		return nil, 0, ErrDisposed
	}
	if req == nil {
		return nil, 0, errors.New("request must not be nil")
	}

	token := req.Token
	if token == nil {
		token = cancel.New()
	}
	// Dispose may have run since the check above.
	if !c.tokens.Add(token) {
		return nil, 0, ErrDisposed
	}
	defer c.tokens.Remove(token)

	// Observers get a context that outlives the cancellation of the call.
	notifyCtx := context.WithoutCancel(ctx)

	ctx, stop := token.Context(ctx)
	defer stop()

	if req.Redirect != nil {
		ctx = withRedirectPolicy(ctx, *req.Redirect)
	}

	requestID := req.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	cl := &call{
		req:       req,
		token:     token,
		requestID: requestID,
		logger:    c.logger.With("request_id", requestID),
	}
	if req.Progress != nil {
		// Replays resend the body; the caller still sees one 0 to 100 run.
		cl.progress = progress.Monotonic(req.Progress)
	}

	target, err := req.resolve(c.baseURL)
	if err != nil {
		return nil, 0, c.fail(notifyCtx, cl, newFailure(KindClient, 0, err))
	}
	cl.target = target

	// The payload is encoded once per logical call and replayed as is.
	enc, err := c.encoder.Encode(ctx, req.Body, req.ContentType)
	if err != nil {
		return nil, 0, c.fail(notifyCtx, cl, failureFrom(fmt.Errorf("encoding body: %w", err), 0))
	}
	cl.enc = enc

	refresher, _ := c.auth.(Refresher)

	for attempt := 1; ; attempt++ {
		raw, err := c.send(ctx, cl, attempt)
		if err != nil {
			return raw, attempt, c.fail(notifyCtx, cl, failureFrom(err, 0))
		}

		if isSuccess(raw.StatusCode) {
			if err := accept(raw); err != nil {
				f := newFailure(KindParsing, raw.StatusCode, fmt.Errorf("decoding body: %w", err))
				return raw, attempt, c.fail(notifyCtx, cl, f)
			}
			return raw, attempt, nil
		}

		if raw.StatusCode != http.StatusUnauthorized || c.auth == nil {
			return raw, attempt, c.fail(notifyCtx, cl, statusFailure(raw))
		}

		if attempt > c.cfg.MaxAuthRetries {
			f := statusFailure(raw)
			f.Err = fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, ErrUnexpectedStatusCode)
			if refresher != nil {
				refresher.Unauthorized(notifyCtx, req, f.Err)
			}
			return raw, attempt, c.fail(notifyCtx, cl, f)
		}

		if refresher != nil {
			if err := refresher.Refresh(ctx, req); err != nil {
				if tokErr := token.Err(); tokErr != nil {
					return raw, attempt, c.fail(notifyCtx, cl, failureFrom(tokErr, 0))
				}
				if ctx.Err() != nil {
					return raw, attempt, c.fail(notifyCtx, cl, failureFrom(context.Cause(ctx), 0))
				}

				f := statusFailure(raw)
				f.Err = fmt.Errorf("refreshing credentials: %w", err)
				refresher.Unauthorized(notifyCtx, req, f.Err)
				return raw, attempt, c.fail(notifyCtx, cl, f)
			}
		}

		c.metrics.recordAuthRetry(req.Method)
		cl.logger.Info("retrying after unauthorized response", "tag", tagRetry, "attempt", attempt+1, "max_auth_retries", c.cfg.MaxAuthRetries)
	}
}

// send performs one attempt: it builds a fresh *http.Request, sends it and
// passes the result through the response interceptors.
func (c *Client) send(ctx context.Context, cl *call, attempt int) (*RawResponse, error) {
	if err := cl.token.Err(); err != nil {
		return nil, err
	}

	ctx, span := c.startSpan(ctx, cl, attempt)

	hreq, err := c.build(ctx, cl)
	if err != nil {
		endSpan(span, 0, err)
		return nil, err
	}

	if c.cfg.Log.Requests {
		cl.logger.Info("sending request", "tag", tagRequest, "method", hreq.Method, "url", hreq.URL.String(), "attempt", attempt, "content_length", cl.enc.Length)
	}

	raw, err := c.exec(hreq, cl, attempt)
	if err != nil {
		endSpan(span, 0, err)
		return nil, err
	}
	endSpan(span, raw.StatusCode, nil)

	return c.intercept(ctx, cl.req, raw)
}

// build assembles the headers in order: defaults, content type, request
// headers, request id, the authenticator and trace propagation. Request
// interceptors see the finished request.
func (c *Client) build(ctx context.Context, cl *call) (*http.Request, error) {
	hreq, err := http.NewRequestWithContext(ctx, cl.req.Method, cl.target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	header := make(http.Header)
	for k, v := range c.cfg.DefaultHeaders {
		header.Set(k, v)
	}
	header.Set("Content-Type", cl.enc.ContentType)
	for k, v := range cl.req.Header {
		header[k] = slices.Clone(v)
	}
	header.Set(HeaderRequestID, cl.requestID)

	if c.auth != nil {
		if err := c.auth.Authenticate(ctx, cl.req, header); err != nil {
			return nil, fmt.Errorf("authenticating: %w", err)
		}
	}
	hreq.Header = header

	for _, cookie := range cl.req.Cookies {
		hreq.AddCookie(cookie)
	}
	injectTrace(ctx, hreq.Header)

	if cl.enc.Length > 0 {
		data := cl.enc.Data
		hreq.Body = io.NopCloser(progress.New(data, cl.progress, progress.WithToken(cl.token), progress.WithContext(ctx)))
		hreq.ContentLength = cl.enc.Length
		hreq.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(progress.New(data, nil, progress.WithToken(cl.token), progress.WithContext(ctx))), nil
		}
	} else if cl.progress != nil {
		cl.progress(0)
		cl.progress(100)
	}

	for _, fn := range c.requestInterceptors {
		if err := fn(ctx, hreq); err != nil {
			return nil, fmt.Errorf("request interceptor: %w", err)
		}
	}

	return hreq, nil
}

// exec fires the request and reads the whole response body.
func (c *Client) exec(hreq *http.Request, cl *call, attempt int) (*RawResponse, error) {
	done := c.metrics.inFlight(hreq.Method)
	defer done()

	start := time.Now()
	resp, err := c.hc.Do(hreq)
	if err != nil {
		if tokErr := cl.token.Err(); tokErr != nil {
			return nil, fmt.Errorf("exec http do: %w: %w", tokErr, err)
		}
		return nil, fmt.Errorf("exec http do: %w", err)
	}

	defer func() {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			cl.logger.Error("failed to discard unused body", "tag", tagError, "error", err)
		}
		if err := resp.Body.Close(); err != nil {
			cl.logger.Error("failed to close response body", "tag", tagError, "error", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		if tokErr := cl.token.Err(); tokErr != nil {
			return nil, fmt.Errorf("reading body: %w: %w", tokErr, err)
		}
		return nil, fmt.Errorf("reading body: %w", err)
	}

	elapsed := time.Since(start)
	c.metrics.recordAttempt(hreq.Method, resp.StatusCode, elapsed)

	if err := cl.token.Err(); err != nil {
		return nil, err
	}

	if c.cfg.Log.Responses {
		cl.logger.Info("received response", "tag", tagResponse, "status", resp.StatusCode, "elapsed", elapsed.String(), "bytes", len(b), "attempt", attempt)
	}

	return &RawResponse{
		Request:    cl.req,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       b,
		Attempt:    attempt,
	}, nil
}

// intercept runs the Client's response interceptors, then the request's.
func (c *Client) intercept(ctx context.Context, req *Request, raw *RawResponse) (*RawResponse, error) {
	chain := c.responseInterceptors
	if req.Interceptor != nil {
		chain = append(slices.Clone(chain), req.Interceptor)
	}

	for _, fn := range chain {
		next, err := fn(ctx, raw)
		if err != nil {
			return raw, fmt.Errorf("response interceptor: %w", err)
		}
		if next != nil {
			raw = next
		}
	}

	return raw, nil
}

// fail records a terminal failure once: log, metrics and observer.
func (c *Client) fail(ctx context.Context, cl *call, f *Failure) *Failure {
	if c.cfg.Log.Errors {
		cl.logger.Error("request failed", "tag", tagError, "kind", string(f.Kind), "status", f.StatusCode, "error", f)
	}
	c.metrics.recordFailure(f.Kind, cl.req.Method)

	if c.observer != nil {
		c.observer.OnException(ctx, f)
	}

	return f
}
