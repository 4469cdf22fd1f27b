// Package body turns a logical request body into bytes, a content type
// and a content length.
//
// A [Body] is one of a closed set of variants chosen at the call site:
// [Empty], [JSON], [Form], [FormValues], [Multipart], [Raw] and [Text].
// Encoding of the heavier variants runs on a bounded worker pool owned by
// an [Encoder] so the caller only waits on a cancellable result.
package body

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// Content types set by the encoder.
const (
	ContentTypeJSON      = "application/json"
	ContentTypeForm      = "application/x-www-form-urlencoded"
	ContentTypeText      = "text/plain; charset=utf-8"
	ContentTypeOctet     = "application/octet-stream"
	ContentTypeMultipart = "multipart/form-data"
)

// ErrUnsupported is wrapped by every error caused by a value the encoder
// cannot serialise.
var ErrUnsupported = errors.New("unsupported body")

// Body is a request payload. The set of implementations is closed.
type Body interface {
	// Kind names the variant, e.g. "json" or "multipart".
	Kind() string

	contentType() string
	heavy() bool
	encode() ([]byte, error)
}

type empty struct{}

// Empty is a zero length body.
func Empty() Body { return empty{} }

func (empty) Kind() string            { return "empty" }
func (empty) contentType() string     { return ContentTypeJSON }
func (empty) heavy() bool             { return false }
func (empty) encode() ([]byte, error) { return nil, nil }

type jsonBody struct {
	value any
}

// JSON serialises v with encoding/json.
func JSON(v any) Body { return jsonBody{value: v} }

func (jsonBody) Kind() string        { return "json" }
func (jsonBody) contentType() string { return ContentTypeJSON }
func (jsonBody) heavy() bool         { return true }

func (b jsonBody) encode() ([]byte, error) {
	data, err := json.Marshal(b.value)
	if err != nil {
		return nil, fmt.Errorf("%w: json: %w", ErrUnsupported, err)
	}

	return data, nil
}

type formBody struct {
	values url.Values
	err    error
}

// Form percent-encodes a flat map of primitive values. Values must be
// strings, booleans or numbers; anything else fails encoding.
func Form(m map[string]any) Body {
	values := make(url.Values, len(m))
	for k, v := range m {
		s, err := primitive(v)
		if err != nil {
			return formBody{err: fmt.Errorf("%w: form field %q: %w", ErrUnsupported, k, err)}
		}
		values.Set(k, s)
	}

	return formBody{values: values}
}

// FormValues percent-encodes values as they are.
func FormValues(values url.Values) Body { return formBody{values: values} }

func (formBody) Kind() string        { return "form" }
func (formBody) contentType() string { return ContentTypeForm }
func (formBody) heavy() bool         { return false }

func (b formBody) encode() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}

	return []byte(b.values.Encode()), nil
}

type rawBody struct {
	data []byte
	ct   string
}

// Raw sends data verbatim. An empty contentType defaults to
// application/octet-stream.
func Raw(data []byte, contentType string) Body {
	if contentType == "" {
		contentType = ContentTypeOctet
	}

	return rawBody{data: data, ct: contentType}
}

func (rawBody) Kind() string              { return "raw" }
func (b rawBody) contentType() string     { return b.ct }
func (rawBody) heavy() bool               { return false }
func (b rawBody) encode() ([]byte, error) { return bytes.Clone(b.data), nil }

type textBody struct {
	text string
}

// Text sends s as UTF-8 plain text.
func Text(s string) Body { return textBody{text: s} }

func (textBody) Kind() string              { return "text" }
func (textBody) contentType() string       { return ContentTypeText }
func (textBody) heavy() bool               { return false }
func (b textBody) encode() ([]byte, error) { return []byte(b.text), nil }

func primitive(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case json.Number:
		return val.String(), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("non-primitive value of type %T", v)
	}
}
