package body

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/semaphore"
)

// Encoded is the wire form of a Body.
type Encoded struct {
	Data        []byte
	ContentType string
	Length      int64
}

// Encoder encodes bodies, running JSON and multipart work on a bounded
// pool of goroutines.
type Encoder struct {
	sem *semaphore.Weighted
}

// NewEncoder returns an Encoder allowing at most workers concurrent heavy
// encodings. If workers <= 0, GOMAXPROCS is used.
func NewEncoder(workers int) *Encoder {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Encoder{sem: semaphore.NewWeighted(int64(workers))}
}

type outcome struct {
	enc Encoded
	err error
}

// Encode converts b into bytes. A nil b is treated as Empty. A non-empty
// contentType overrides the variant's default, except for multipart
// bodies whose boundary must stay in the header.
//
// If ctx ends while heavy work is queued or running, Encode returns the
// context cause; the worker finishes in the background and its result
// is dropped.
func (e *Encoder) Encode(ctx context.Context, b Body, contentType string) (Encoded, error) {
	if b == nil {
		b = Empty()
	}

	if err := context.Cause(ctx); err != nil {
		return Encoded{}, err
	}

	if !b.heavy() {
		return encodeNow(b, contentType)
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Encoded{}, fmt.Errorf("waiting for encoder: %w", context.Cause(ctx))
	}

	result := make(chan outcome, 1)
	go func() {
		defer e.sem.Release(1)

		enc, err := encodeNow(b, contentType)
		result <- outcome{enc: enc, err: err}
	}()

	select {
	case out := <-result:
		return out.enc, out.err
	case <-ctx.Done():
		return Encoded{}, context.Cause(ctx)
	}
}

func encodeNow(b Body, contentType string) (Encoded, error) {
	data, err := b.encode()
	if err != nil {
		return Encoded{}, fmt.Errorf("encoding %s body: %w", b.Kind(), err)
	}

	ct := b.contentType()
	if contentType != "" && !strings.HasPrefix(ct, ContentTypeMultipart) {
		ct = contentType
	}

	return Encoded{
		Data:        data,
		ContentType: ct,
		Length:      int64(len(data)),
	}, nil
}
