// Package zaptest provides an in-memory transport for exercising a
// client.Client without a network.
package zaptest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Reply is one scripted transport outcome. A non-nil Err is returned from
// RoundTrip instead of a response.
type Reply struct {
	Status int
	Header http.Header
	Body   []byte
	Err    error
}

// Recorded is a request as the transport received it.
type Recorded struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Handler computes the reply for a recorded request.
type Handler func(r Recorded) Reply

// Transport is an http.RoundTripper that replays scripted replies and
// records every request it receives. It is safe for concurrent use.
type Transport struct {
	mu       sync.Mutex
	handler  Handler
	script   []Reply
	requests []Recorded
}

// New returns a Transport answering with replies in order. The last reply
// repeats once the script is exhausted; an empty script answers 200.
func New(replies ...Reply) *Transport {
	return &Transport{script: replies}
}

// NewFunc returns a Transport answering through h.
func NewFunc(h Handler) *Transport {
	return &Transport{handler: h}
}

// RoundTrip implements http.RoundTripper. The request body is read in
// full before a reply is chosen, so body read errors surface here.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	if err := r.Context().Err(); err != nil {
		return nil, context.Cause(r.Context())
	}

	rec := Recorded{
		Method: r.Method,
		URL:    r.URL.String(),
		Header: r.Header.Clone(),
	}

	if r.Body != nil {
		b, err := io.ReadAll(r.Body)
		closeErr := r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("closing request body: %w", closeErr)
		}
		rec.Body = b
	}

	t.mu.Lock()
	n := len(t.requests)
	t.requests = append(t.requests, rec)
	reply := Reply{Status: http.StatusOK}
	switch {
	case t.handler != nil:
		h := t.handler
		t.mu.Unlock()
		reply = h(rec)
	case len(t.script) > 0:
		reply = t.script[min(n, len(t.script)-1)]
		t.mu.Unlock()
	default:
		t.mu.Unlock()
	}

	if reply.Err != nil {
		return nil, reply.Err
	}

	header := reply.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", reply.Status, http.StatusText(reply.Status)),
		StatusCode:    reply.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(reply.Body)),
		ContentLength: int64(len(reply.Body)),
		Request:       r,
	}, nil
}

// Requests returns a copy of the requests received so far.
func (t *Transport) Requests() []Recorded {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Recorded, len(t.requests))
	copy(out, t.requests)

	return out
}

// Len returns the number of requests received so far.
func (t *Transport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.requests)
}

// JSON returns a reply with v encoded as its JSON body. It panics if v
// cannot be encoded.
func JSON(status int, v any) Reply {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("zaptest: encoding reply: %v", err))
	}

	return Reply{
		Status: status,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   b,
	}
}

// Text returns a reply with a plain text body.
func Text(status int, s string) Reply {
	return Reply{
		Status: status,
		Header: http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:   []byte(s),
	}
}

// Status returns a reply with no body.
func Status(status int) Reply {
	return Reply{Status: status}
}

// Fail returns a reply that makes RoundTrip return err.
func Fail(err error) Reply {
	return Reply{Err: err}
}
