// Package progress wraps an encoded request body in a chunked reader that
// reports upload progress and honours cancellation between chunks.
package progress

import (
	"bytes"
	"context"
	"io"
	"iter"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/adamwoolhether/zapflux/cancel"
)

const (
	// ChunkSize is the largest slice handed out per Read when a callback is set.
	ChunkSize = 8 << 10 // 8KB

	// Interval is the minimum wall time between throttled callback invocations.
	Interval = 16 * time.Millisecond
)

// Func receives the percentage of bytes handed to the consumer, 0 to 100.
// It runs on the goroutine reading the stream.
type Func func(percent float64)

// Monotonic wraps fn so that it never sees a value lower than one it has
// already seen, nor the same value twice. It is safe for concurrent use.
func Monotonic(fn Func) Func {
	var (
		mu   sync.Mutex
		last = -1.0
	)

	return func(percent float64) {
		mu.Lock()
		defer mu.Unlock()

		if percent <= last {
			return
		}
		last = percent
		fn(percent)
	}
}

// Option configures a Stream.
type Option func(*Stream)

// WithToken makes the stream stop with the token's error once it is cancelled.
func WithToken(t *cancel.Token) Option {
	return func(s *Stream) {
		s.token = t
	}
}

// WithContext makes the stream stop with the context cause once ctx ends.
func WithContext(ctx context.Context) Option {
	return func(s *Stream) {
		s.ctx = ctx
	}
}

// WithChunkSize overrides ChunkSize. Values <= 0 are ignored.
func WithChunkSize(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.chunk = n
		}
	}
}

// WithInterval overrides Interval. A zero interval reports every chunk.
func WithInterval(d time.Duration) Option {
	return func(s *Stream) {
		if d <= 0 {
			s.limiter = &rate.Sometimes{Every: 1}
			return
		}
		s.limiter = &rate.Sometimes{Interval: d}
	}
}

// Stream is an io.Reader over an in-memory body. It is not safe for
// concurrent reads.
type Stream struct {
	data    []byte
	off     int
	fn      Func
	chunk   int
	token   *cancel.Token
	ctx     context.Context
	limiter *rate.Sometimes
	started bool
}

// New returns a Stream over data. When fn is nil the stream is a plain
// pass-through: reads are not capped at ChunkSize and nothing is reported.
func New(data []byte, fn Func, opts ...Option) *Stream {
	s := &Stream{
		data:    data,
		fn:      fn,
		chunk:   ChunkSize,
		limiter: &rate.Sometimes{Interval: Interval},
	}
	for _, opt := range opts {
		opt(s)
	}
	if fn == nil {
		s.chunk = max(len(data), 1)
	}

	return s
}

// Len returns the total number of bytes in the stream.
func (s *Stream) Len() int64 { return int64(len(s.data)) }

// Read implements io.Reader. Each call is a chunk boundary: cancellation
// is checked before any byte is handed out.
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.cancelled(); err != nil {
		return 0, err
	}

	if s.fn != nil && !s.started {
		s.started = true
		s.fn(0)
	}

	if s.off >= len(s.data) {
		if s.fn != nil && len(s.data) == 0 && s.off == 0 {
			s.off = 1 // report completion of an empty body once
			s.fn(100)
		}
		return 0, io.EOF
	}

	if len(p) > s.chunk {
		p = p[:s.chunk]
	}
	n := copy(p, s.data[s.off:])
	s.off += n

	if s.fn == nil || s.cancelled() != nil {
		return n, nil
	}

	if s.off == len(s.data) {
		s.fn(100)
		return n, nil
	}

	pct := float64(s.off) / float64(len(s.data)) * 100
	s.limiter.Do(func() { s.fn(pct) })

	return n, nil
}

// Chunks yields the remaining body lazily, one chunk per iteration. A
// cancellation error is yielded once and ends the sequence.
func (s *Stream) Chunks() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, s.chunk)
		for {
			n, err := s.Read(buf)
			if n > 0 && !yield(bytes.Clone(buf[:n]), nil) {
				return
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

func (s *Stream) cancelled() error {
	if s.token != nil {
		if err := s.token.Err(); err != nil {
			return err
		}
	}
	if s.ctx != nil {
		if s.ctx.Err() != nil {
			return context.Cause(s.ctx)
		}
	}

	return nil
}
