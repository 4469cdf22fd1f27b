// Package cancel provides a cooperative cancellation token that can be
// shared between a caller and the in-flight work it started.
//
// A [Token] is cancelled at most once. Observers registered with
// [Token.OnCancel] run synchronously on the cancelling goroutine, each
// exactly once. Work that consumes a token is expected to check it at
// every yield point and stop with [ErrCancelled].
//
// Cancellation is best-effort: the token never interrupts code that does
// not look at it. [Token.Context] bridges the token into a
// [context.Context] so blocking calls that honour contexts are released
// as well.
package cancel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ErrCancelled is matched by every error produced from a cancelled token.
var ErrCancelled = errors.New("request cancelled")

// DefaultReason is used when Cancel is called with an empty reason.
const DefaultReason = "cancelled by caller"

// Error carries the reason a token was cancelled.
type Error struct {
	TokenID string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", ErrCancelled, e.Reason)
}

func (e *Error) Unwrap() error {
	return ErrCancelled
}

// Token is a cooperative cancellation signal.
type Token struct {
	id string

	mu        sync.Mutex
	cancelled bool
	reason    string
	observers []*observer
	done      chan struct{}
}

// New returns an active token with a fresh identity.
func New() *Token {
	return &Token{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

// ID returns the token identity.
func (t *Token) ID() string { return t.id }

// Cancel marks the token cancelled and notifies observers. Subsequent
// calls are no-ops and report false.
func (t *Token) Cancel(reason string) bool {
	if reason == "" {
		reason = DefaultReason
	}

	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return false
	}
	t.cancelled = true
	t.reason = reason
	observers := t.observers
	t.observers = nil
	close(t.done)
	t.mu.Unlock()

	for _, o := range observers {
		o.fn(reason)
	}

	return true
}

// IsCancelled reports whether Cancel has been called.
func (t *Token) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cancelled
}

// Reason returns the cancellation reason, or "" while active.
func (t *Token) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.reason
}

// Done returns a channel closed on cancellation.
func (t *Token) Done() <-chan struct{} { return t.done }

// Err returns nil while active and an *Error once cancelled.
func (t *Token) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.cancelled {
		return nil
	}

	return &Error{TokenID: t.id, Reason: t.reason}
}

// OnCancel registers fn to run once when the token is cancelled. If the
// token is already cancelled fn runs immediately. The returned func
// unregisters fn and reports whether it was still pending.
func (t *Token) OnCancel(fn func(reason string)) (stop func() bool) {
	t.mu.Lock()
	if t.cancelled {
		reason := t.reason
		t.mu.Unlock()
		fn(reason)
		return func() bool { return false }
	}

	o := &observer{fn: fn}
	t.observers = append(t.observers, o)
	t.mu.Unlock()

	return func() bool {
		t.mu.Lock()
		defer t.mu.Unlock()

		if t.cancelled {
			return false
		}

		for i, registered := range t.observers {
			if registered == o {
				t.observers = slices.Delete(t.observers, i, i+1)
				return true
			}
		}

		return false
	}
}

type observer struct {
	fn func(string)
}

// Context returns a context that is cancelled, with the token's *Error as
// its cause, when either parent ends or the token is cancelled. Callers
// must call stop to release the observer once the work is done.
func (t *Token) Context(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancelCause := context.WithCancelCause(parent)
	unregister := t.OnCancel(func(string) {
		cancelCause(t.Err())
	})

	return ctx, func() {
		unregister()
		cancelCause(context.Canceled)
	}
}
