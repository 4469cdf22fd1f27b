package client

import (
	"encoding/json"
	"net/http"
)

// RawResponse is what the transport returned for one attempt, before
// decoding. Interceptors receive and return RawResponses.
type RawResponse struct {
	Request    *Request
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempt    int
}

// Response is the terminal outcome of a logical call. A failed call still
// produces a fully populated Response when error safety is enabled.
type Response[T any] struct {
	Request    *Request
	StatusCode int
	Kind       Kind
	Message    string
	Header     http.Header
	Data       T
	Body       []byte
	Attempts   int

	failure *Failure
}

// HasError reports whether the call failed.
func (r *Response[T]) HasError() bool {
	return r.failure != nil
}

// Err returns the *Failure behind an error response, or nil.
func (r *Response[T]) Err() error {
	if r.failure == nil {
		return nil
	}

	return r.failure
}

// Failure returns the failure behind an error response, or nil.
func (r *Response[T]) Failure() *Failure {
	return r.failure
}

// String returns the raw body as a string.
func (r *Response[T]) String() string {
	return string(r.Body)
}

func successResponse[T any](raw *RawResponse, data T) *Response[T] {
	return &Response[T]{
		Request:    raw.Request,
		StatusCode: raw.StatusCode,
		Message:    http.StatusText(raw.StatusCode),
		Header:     raw.Header,
		Data:       data,
		Body:       raw.Body,
		Attempts:   raw.Attempt,
	}
}

func failureResponse[T any](req *Request, raw *RawResponse, f *Failure, attempts int) *Response[T] {
	resp := &Response[T]{
		Request:    req,
		StatusCode: f.StatusCode,
		Kind:       f.Kind,
		Message:    f.Message,
		Header:     f.Header,
		Attempts:   attempts,
		failure:    f,
	}
	if raw != nil {
		resp.Body = raw.Body
	}

	return resp
}

// Decoder converts a raw response body into a typed value. Decoder
// errors are classified as parsing failures.
type Decoder[T any] func(data []byte) (T, error)

// JSONDecoder decodes the body as JSON into T. An empty body yields the
// zero value.
func JSONDecoder[T any]() Decoder[T] {
	return func(data []byte) (T, error) {
		var v T
		if len(data) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return v, err
		}
		return v, nil
	}
}

// StringDecoder returns the body as a string.
func StringDecoder(data []byte) (string, error) {
	return string(data), nil
}

// BytesDecoder returns the body unchanged.
func BytesDecoder(data []byte) ([]byte, error) {
	return data, nil
}
