package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"syscall"

	"github.com/adamwoolhether/zapflux/body"
	"github.com/adamwoolhether/zapflux/cancel"
)

// Kind classifies a failure. The set is closed.
type Kind string

const (
	KindNone       Kind = ""
	KindTimeout    Kind = "timeout"
	KindNetwork    Kind = "network"
	KindServer     Kind = "server"
	KindClient     Kind = "client"
	KindAuth       Kind = "auth"
	KindSSL        Kind = "ssl"
	KindConnection Kind = "connection"
	KindDNS        Kind = "dns"
	KindParsing    Kind = "parsing"
	KindCancelled  Kind = "cancelled"
	KindUnknown    Kind = "unknown"
)

// Kinds lists every failure kind.
var Kinds = []Kind{
	KindTimeout, KindNetwork, KindServer, KindClient, KindAuth, KindSSL,
	KindConnection, KindDNS, KindParsing, KindCancelled, KindUnknown,
}

// Status codes used for failures that never produced a real response.
const (
	StatusClientClosedRequest = 499 // cancelled
	StatusSSLCertificateError = 495
	StatusNetworkUnreachable  = 599
	StatusUnknownError        = 520
)

// Diagnostic headers attached to failure responses.
const (
	HeaderErrorType    = "X-Error-Type"
	HeaderRetryAfter   = "Retry-After"
	HeaderDNSError     = "X-DNS-Error"
	HeaderSSLError     = "X-SSL-Error"
	HeaderNetworkError = "X-Network-Error"
	HeaderCancelReason = "X-Cancel-Reason"
)

// connectionRetryAfter is advertised to callers after a refused connection.
const connectionRetryAfter = 5

// Shape is the normalized response form of a Kind.
type Shape struct {
	StatusCode int
	Message    string
	Header     http.Header
}

// Shape maps k to its status, message and diagnostic headers. status is
// the status of the response that caused the failure, or 0 when none was
// received; it is only kept by server and client kinds. Unrecognised
// kinds map to KindUnknown, so every value yields exactly one shape.
func (k Kind) Shape(status int) Shape {
	h := make(http.Header)

	switch k {
	case KindTimeout:
		h.Set(HeaderErrorType, string(k))
		return Shape{http.StatusRequestTimeout, "request timed out", h}

	case KindNetwork:
		h.Set(HeaderErrorType, string(k))
		h.Set(HeaderNetworkError, "true")
		return Shape{StatusNetworkUnreachable, "network is not reachable", h}

	case KindServer:
		h.Set(HeaderErrorType, string(k))
		if status < 500 || status > 599 {
			status = http.StatusInternalServerError
		}
		return Shape{status, "server error: " + statusText(status), h}

	case KindClient:
		h.Set(HeaderErrorType, string(k))
		if status < 400 || status > 499 {
			status = http.StatusBadRequest
		}
		return Shape{status, "request rejected: " + statusText(status), h}

	case KindAuth:
		h.Set(HeaderErrorType, string(k))
		return Shape{http.StatusUnauthorized, "authentication required", h}

	case KindSSL:
		h.Set(HeaderErrorType, string(k))
		h.Set(HeaderSSLError, "true")
		return Shape{StatusSSLCertificateError, "secure connection could not be established", h}

	case KindConnection:
		h.Set(HeaderErrorType, string(k))
		h.Set(HeaderRetryAfter, strconv.Itoa(connectionRetryAfter))
		return Shape{http.StatusServiceUnavailable, "could not connect to host", h}

	case KindDNS:
		h.Set(HeaderErrorType, string(k))
		h.Set(HeaderDNSError, "true")
		return Shape{http.StatusBadGateway, "host name could not be resolved", h}

	case KindParsing:
		h.Set(HeaderErrorType, string(k))
		return Shape{http.StatusUnprocessableEntity, "payload could not be encoded or decoded", h}

	case KindCancelled:
		h.Set(HeaderErrorType, string(k))
		return Shape{StatusClientClosedRequest, "request cancelled", h}

	default:
		h.Set(HeaderErrorType, string(KindUnknown))
		return Shape{StatusUnknownError, "unknown error", h}
	}
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("%d %s", code, text)
	}

	return strconv.Itoa(code)
}

// Classify maps an error returned by the transport, the encoder, a
// decoder or a hook onto a Kind. A nil error is KindNone.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	if f, ok := errors.AsType[*Failure](err); ok {
		return f.Kind
	}

	switch {
	case errors.Is(err, cancel.ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, body.ErrUnsupported):
		return KindParsing
	case errors.Is(err, ErrUnauthorized):
		return KindAuth
	case errors.Is(err, ErrTooManyRedirects):
		return KindClient
	}

	if _, ok := errors.AsType[*net.DNSError](err); ok {
		return KindDNS
	}

	if isTLS(err) {
		return KindSSL
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	if netErr, ok := errors.AsType[net.Error](err); ok && netErr.Timeout() {
		return KindTimeout
	}

	if isJSON(err) {
		return KindParsing
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnection
	}
	if opErr, ok := errors.AsType[*net.OpError](err); ok {
		if opErr.Op == "dial" {
			return KindConnection
		}
		return KindNetwork
	}

	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.Is(err, net.ErrClosed):
		return KindNetwork
	}

	return KindUnknown
}

func isTLS(err error) bool {
	if _, ok := errors.AsType[*tls.CertificateVerificationError](err); ok {
		return true
	}
	if _, ok := errors.AsType[x509.UnknownAuthorityError](err); ok {
		return true
	}
	if _, ok := errors.AsType[x509.HostnameError](err); ok {
		return true
	}
	if _, ok := errors.AsType[x509.CertificateInvalidError](err); ok {
		return true
	}
	if _, ok := errors.AsType[tls.RecordHeaderError](err); ok {
		return true
	}
	if _, ok := errors.AsType[tls.AlertError](err); ok {
		return true
	}

	return false
}

func isJSON(err error) bool {
	if _, ok := errors.AsType[*json.SyntaxError](err); ok {
		return true
	}
	if _, ok := errors.AsType[*json.UnmarshalTypeError](err); ok {
		return true
	}
	if _, ok := errors.AsType[*json.InvalidUnmarshalError](err); ok {
		return true
	}

	return false
}

// newFailure builds the Failure of kind for cause. status is the status
// of the response involved, if any.
func newFailure(kind Kind, status int, cause error) *Failure {
	shape := kind.Shape(status)
	if shape.Header.Get(HeaderErrorType) == string(KindUnknown) {
		kind = KindUnknown
	}

	f := &Failure{
		Kind:       kind,
		StatusCode: shape.StatusCode,
		Message:    shape.Message,
		Header:     shape.Header,
		Err:        cause,
	}

	if kind == KindCancelled {
		reason := cancel.DefaultReason
		if cErr, ok := errors.AsType[*cancel.Error](cause); ok {
			reason = cErr.Reason
		}
		f.Header.Set(HeaderCancelReason, reason)
	}

	return f
}

// failureFrom classifies err unless it already is a *Failure.
func failureFrom(err error, status int) *Failure {
	if f, ok := errors.AsType[*Failure](err); ok {
		return f
	}

	return newFailure(Classify(err), status, err)
}

// isSuccess reports whether status is delivered as a successful response.
// Redirects only surface when the policy refuses to follow them.
func isSuccess(status int) bool {
	return status >= 200 && status < 400
}

// statusFailure builds the Failure for a response with an error status.
func statusFailure(raw *RawResponse) *Failure {
	kind := KindClient
	switch {
	case raw.StatusCode == http.StatusUnauthorized:
		kind = KindAuth
	case raw.StatusCode >= 500:
		kind = KindServer
	}

	f := newFailure(kind, raw.StatusCode, ErrUnexpectedStatusCode)
	f.StatusCode = raw.StatusCode

	b := raw.Body
	if len(b) > maxErrBodySize {
		b = b[:maxErrBodySize]
	}
	f.Body = string(b)

	// Server headers win, diagnostics are added on top.
	h := raw.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	for k, v := range f.Header {
		h[k] = v
	}
	f.Header = h

	return f
}
