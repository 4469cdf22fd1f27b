package client

import (
	"errors"
	"fmt"
	"net/http"
)

// maxErrBodySize caps the amount of response body copied into a
// Failure. This prevents unbounded memory usage when a large response
// arrives with an error status.
const maxErrBodySize = 4 << 10 // 4KB

var (
	// ErrUnexpectedStatusCode is wrapped by failures built from a non-2xx response.
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrUnauthorized is wrapped by auth failures raised before or after a send.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRetriesExhausted is reported when a 401 persists past the auth retry budget.
	ErrRetriesExhausted = errors.New("auth retries exhausted")
	// ErrTooManyRedirects is returned when a redirect chain exceeds the policy.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrAlreadyExists is returned by Build while another Client is live.
	ErrAlreadyExists = errors.New("client already exists")
	// ErrNoClient is returned by Default when no Client is live.
	ErrNoClient = errors.New("no live client")
	// ErrDisposed is returned when a disposed Client is used.
	ErrDisposed = errors.New("client disposed")
)

// Failure is the normalized form of anything that went wrong during a
// send cycle. Every Failure carries the shape of its Kind.
type Failure struct {
	Kind       Kind
	StatusCode int
	Message    string
	Header     http.Header
	Body       string
	Err        error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s: %d %s", f.Kind, f.StatusCode, f.Message)
	if f.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Err)
	}
	if f.Body != "" {
		msg = fmt.Sprintf("%s, body: %s", msg, f.Body)
	}

	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is matches another *Failure of the same Kind, so the per-kind
// sentinels below work with errors.Is.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}

	return f.Kind == t.Kind && (t.StatusCode == 0 || t.StatusCode == f.StatusCode)
}

// Per-kind sentinels for errors.Is.
var (
	ErrTimeout    = &Failure{Kind: KindTimeout}
	ErrNetwork    = &Failure{Kind: KindNetwork}
	ErrServer     = &Failure{Kind: KindServer}
	ErrClient     = &Failure{Kind: KindClient}
	ErrAuth       = &Failure{Kind: KindAuth}
	ErrSSL        = &Failure{Kind: KindSSL}
	ErrConnection = &Failure{Kind: KindConnection}
	ErrDNS        = &Failure{Kind: KindDNS}
	ErrParsing    = &Failure{Kind: KindParsing}
	ErrCancelled  = &Failure{Kind: KindCancelled}
	ErrUnknown    = &Failure{Kind: KindUnknown}
)
