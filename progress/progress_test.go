package progress_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/adamwoolhether/zapflux/cancel"
	"github.com/adamwoolhether/zapflux/progress"
)

func TestStream_ProgressSequence(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 200_000)

	var got []float64
	s := progress.New(data, func(p float64) { got = append(got, p) })

	out, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("exp nil err; got: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("exp %d bytes; got %d", len(data), len(out))
	}

	if len(got) < 2 {
		t.Fatalf("exp at least two callbacks; got %v", got)
	}
	if got[0] != 0 {
		t.Errorf("exp first value 0; got %v", got[0])
	}
	if last := got[len(got)-1]; last != 100 {
		t.Errorf("exp last value 100; got %v", last)
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Errorf("values must not decrease: %v then %v", got[i-1], got[i])
		}
	}
}

func TestStream_Throttled(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100*progress.ChunkSize)

	var calls int
	s := progress.New(data, func(float64) { calls++ }, progress.WithInterval(time.Hour))

	if _, err := io.Copy(io.Discard, s); err != nil {
		t.Fatalf("exp nil err; got: %v", err)
	}

	// 0%, the first throttled chunk, and the forced 100%.
	if calls != 3 {
		t.Errorf("exp 3 callbacks under a long interval; got %d", calls)
	}
}

func TestStream_ChunkSize(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 3*progress.ChunkSize+1)
	s := progress.New(data, func(float64) {})

	var sizes []int
	for chunk, err := range s.Chunks() {
		if err != nil {
			t.Fatalf("exp nil err; got: %v", err)
		}
		sizes = append(sizes, len(chunk))
	}

	exp := []int{progress.ChunkSize, progress.ChunkSize, progress.ChunkSize, 1}
	if len(sizes) != len(exp) {
		t.Fatalf("exp chunks %v; got %v", exp, sizes)
	}
	for i := range exp {
		if sizes[i] != exp[i] {
			t.Errorf("chunk %d: exp %d bytes; got %d", i, exp[i], sizes[i])
		}
	}
}

func TestStream_NoCallbackSingleChunk(t *testing.T) {
	data := bytes.Repeat([]byte("y"), 5*progress.ChunkSize)
	s := progress.New(data, nil)

	var chunks int
	for _, err := range s.Chunks() {
		if err != nil {
			t.Fatalf("exp nil err; got: %v", err)
		}
		chunks++
	}

	if chunks != 1 {
		t.Errorf("exp single chunk without callback; got %d", chunks)
	}
}

func TestStream_CancelMidStream(t *testing.T) {
	data := bytes.Repeat([]byte("z"), 10*progress.ChunkSize)
	tok := cancel.New()

	var got []float64
	var cancelled bool
	s := progress.New(data, func(p float64) {
		if cancelled {
			t.Errorf("callback after cancellation: %v", p)
		}
		got = append(got, p)
	}, progress.WithToken(tok), progress.WithInterval(0))

	var chunks int
	var streamErr error
	for _, err := range s.Chunks() {
		if err != nil {
			streamErr = err
			break
		}
		chunks++
		if chunks == 3 {
			tok.Cancel("stop uploading")
			cancelled = true
		}
	}

	if !errors.Is(streamErr, cancel.ErrCancelled) {
		t.Fatalf("exp ErrCancelled; got: %v", streamErr)
	}
	if chunks != 3 {
		t.Errorf("exp no chunks after cancellation; got %d", chunks)
	}
	if got[len(got)-1] == 100 {
		t.Error("cancelled stream must not report 100")
	}
}

func TestStream_CancelledContext(t *testing.T) {
	ctx, cancelFn := context.WithCancel(t.Context())
	cancelFn()

	var calls int
	s := progress.New([]byte("data"), func(float64) { calls++ }, progress.WithContext(ctx))

	n, err := s.Read(make([]byte, 10))
	if n != 0 || !errors.Is(err, context.Canceled) {
		t.Errorf("exp (0, context.Canceled); got (%d, %v)", n, err)
	}
	if calls != 0 {
		t.Errorf("exp no callbacks; got %d", calls)
	}
}

func TestStream_EmptyBody(t *testing.T) {
	var got []float64
	s := progress.New(nil, func(p float64) { got = append(got, p) })

	if _, err := io.ReadAll(s); err != nil {
		t.Fatalf("exp nil err; got: %v", err)
	}

	if len(got) != 2 || got[0] != 0 || got[1] != 100 {
		t.Errorf("exp [0 100]; got %v", got)
	}
}

func TestMonotonic(t *testing.T) {
	var got []float64
	fn := progress.Monotonic(func(p float64) { got = append(got, p) })

	// A second stream over the same body, as on a replay.
	for _, p := range []float64{0, 40, 100, 0, 40, 100} {
		fn(p)
	}
	// A replay that outruns a partial first stream resumes past it.
	for _, p := range []float64{0, 20} {
		fn(p)
	}

	if want := []float64{0, 40, 100}; !slices.Equal(got, want) {
		t.Errorf("exp %v; got %v", want, got)
	}
}

func TestMonotonic_PartialFirstStream(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 4*progress.ChunkSize)

	var got []float64
	fn := progress.Monotonic(func(p float64) { got = append(got, p) })

	first := progress.New(data, fn, progress.WithInterval(0))
	if _, err := first.Read(make([]byte, progress.ChunkSize)); err != nil {
		t.Fatalf("exp nil err; got: %v", err)
	}

	if _, err := io.Copy(io.Discard, progress.New(data, fn, progress.WithInterval(0))); err != nil {
		t.Fatalf("exp nil err; got: %v", err)
	}

	if want := []float64{0, 25, 50, 75, 100}; !slices.Equal(got, want) {
		t.Errorf("exp %v; got %v", want, got)
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	fn := progress.Log(logger, "uploading", 2048)
	fn(50)

	out := buf.String()
	for _, want := range []string{"uploading", "progress=50.0%", "transferred=1024", "total=2048"} {
		if !strings.Contains(out, want) {
			t.Errorf("exp log to contain %q; got %q", want, out)
		}
	}
}

func TestLog_UnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	progress.Log(logger, "uploading", 0)(100)

	out := buf.String()
	if !strings.Contains(out, "progress=100.0%") {
		t.Errorf("exp progress in log; got %q", out)
	}
	if strings.Contains(out, "total=") {
		t.Errorf("exp no total for unknown size; got %q", out)
	}
}
