package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/adamwoolhether/zapflux/body"
	"github.com/adamwoolhether/zapflux/cancel"
	"github.com/adamwoolhether/zapflux/progress"
)

// RedirectPolicy decides whether redirects are followed and how many.
type RedirectPolicy struct {
	Follow bool
	Max    int
}

// Request describes one logical call. It is built once and may be sent
// more than once when an auth retry happens; each attempt builds a fresh
// *http.Request from it.
type Request struct {
	Method       string
	URL          *url.URL
	Header       http.Header
	Body         body.Body
	ContentType  string
	Cookies      []*http.Cookie
	Progress     progress.Func
	Token        *cancel.Token
	RequiresAuth bool
	Interceptor  ResponseInterceptor
	Redirect     *RedirectPolicy
}

// RequestOption is a functional option for [NewRequest].
type RequestOption func(*Request) error

// NewRequest builds a Request for target, which is either an absolute URL
// or a path resolved against the Client's base URL at send time.
func NewRequest(method, target string, opts ...RequestOption) (*Request, error) {
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parsing target: %w", err)
	}

	req := &Request{
		Method: strings.ToUpper(method),
		URL:    u,
		Header: make(http.Header),
		Body:   body.Empty(),
	}

	for _, opt := range opts {
		if err := opt(req); err != nil {
			return nil, err
		}
	}

	return req, nil
}

// WithBody sets the request payload.
func WithBody(b body.Body) RequestOption {
	return func(r *Request) error {
		if b == nil {
			b = body.Empty()
		}
		r.Body = b
		return nil
	}
}

// WithPayload sets a JSON-encoded request body.
func WithPayload(v any) RequestOption {
	return WithBody(body.JSON(v))
}

// WithContentType overrides the content type chosen by the body encoder.
func WithContentType(contentType string) RequestOption {
	return func(r *Request) error {
		if contentType == "" {
			return errors.New("cannot use empty content type")
		}
		r.ContentType = contentType
		return nil
	}
}

// WithHeaders adds custom headers to the outgoing request.
func WithHeaders(headers map[string][]string) RequestOption {
	return func(r *Request) error {
		for k, v := range headers {
			for _, element := range v {
				r.Header.Add(k, element)
			}
		}
		return nil
	}
}

// WithHeader sets a single header, replacing earlier values.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) error {
		r.Header.Set(key, value)
		return nil
	}
}

// WithCookies attaches the given cookies to the outgoing request.
func WithCookies(cookies ...*http.Cookie) RequestOption {
	return func(r *Request) error {
		r.Cookies = append(r.Cookies, cookies...)
		return nil
	}
}

// WithQuery appends query parameters to the target.
func WithQuery(params map[string]string) RequestOption {
	return func(r *Request) error {
		q := r.URL.Query()
		for k, v := range params {
			q.Add(k, v)
		}
		r.URL.RawQuery = q.Encode()
		return nil
	}
}

// WithProgress reports upload progress of the request body to fn.
func WithProgress(fn progress.Func) RequestOption {
	return func(r *Request) error {
		r.Progress = fn
		return nil
	}
}

// WithCancelToken lets the caller cancel the request through t.
func WithCancelToken(t *cancel.Token) RequestOption {
	return func(r *Request) error {
		r.Token = t
		return nil
	}
}

// WithAuth marks the request as requiring credentials. The authenticator
// must fail the request before it is sent if none are available.
func WithAuth() RequestOption {
	return func(r *Request) error {
		r.RequiresAuth = true
		return nil
	}
}

// WithInterceptor runs fn on this request's responses after the Client's
// own response interceptors.
func WithInterceptor(fn ResponseInterceptor) RequestOption {
	return func(r *Request) error {
		r.Interceptor = fn
		return nil
	}
}

// WithRedirects overrides the Client's redirect policy for this request.
func WithRedirects(follow bool, maxHops int) RequestOption {
	return func(r *Request) error {
		if maxHops < 0 {
			return errors.New("max redirects must not be negative")
		}
		r.Redirect = &RedirectPolicy{Follow: follow, Max: maxHops}
		return nil
	}
}

// resolve combines the target with base. Absolute targets are kept; a
// relative path is joined onto the base path and queries are merged.
func (r *Request) resolve(base *url.URL) (*url.URL, error) {
	if r.URL.IsAbs() {
		return r.URL, nil
	}
	if base == nil {
		return nil, fmt.Errorf("relative target %q without base url", r.URL)
	}

	u := *base
	switch {
	case r.URL.Path == "":
	case u.Path == "":
		u.Path = "/" + strings.TrimLeft(r.URL.Path, "/")
	default:
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(r.URL.Path, "/")
	}
	u.RawPath = ""

	q := u.Query()
	for k, vs := range r.URL.Query() {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	return &u, nil
}

// URLOption is a functional option for [URL].
type URLOption func(options *urlOpts)

type urlOpts struct {
	queryStrings map[string]string
	port         *int
}

// WithQueryStrings appends query parameters to the URL.
func WithQueryStrings(queryKV map[string]string) URLOption {
	return func(opts *urlOpts) {
		opts.queryStrings = queryKV
	}
}

// WithPort sets the port number on the URL's host.
func WithPort(port int) URLOption {
	return func(opts *urlOpts) {
		opts.port = &port
	}
}

// URL creates a url.URL suitable as a request target or base URL.
func URL(scheme, host, path string, opts ...URLOption) *url.URL {
	var settings urlOpts
	for _, opt := range opts {
		opt(&settings)
	}

	if settings.port != nil {
		host = fmt.Sprintf("%s:%d", host, *settings.port)
	}

	endpoint := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   path,
	}

	if settings.queryStrings != nil {
		queryParams := url.Values{}
		for k, v := range settings.queryStrings {
			queryParams.Add(k, v)
		}

		endpoint.RawQuery = queryParams.Encode()
	}

	return &endpoint
}
