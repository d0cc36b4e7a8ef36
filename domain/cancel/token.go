// Package cancel provides a cooperative cancellation latch shared between
// the code that requests cancellation and the polling loops that observe it.
package cancel

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrCancelled is reported by operations that observed a cancelled Token.
var ErrCancelled = errors.New("operation cancelled")

// Token is a thread-safe boolean latch. It starts unset, Cancel sets it and
// Reset clears it again. Share a *Token by pointer; the zero value is ready
// to use and a nil *Token is never cancelled.
//
// A Token is only polled. It never interrupts work already in progress.
type Token struct {
	cancelled atomic.Bool
}

func New() *Token { return &Token{} }

// Cancel sets the latch. Calling it repeatedly is harmless.
func (t *Token) Cancel() {
	if t != nil {
		t.cancelled.Store(true)
	}
}

func (t *Token) IsCancelled() bool {
	return t != nil && t.cancelled.Load()
}

// Reset clears the latch so the token can be reused.
func (t *Token) Reset() {
	if t != nil {
		t.cancelled.Store(false)
	}
}

// Err returns ErrCancelled once the latch is set, nil otherwise.
func (t *Token) Err() error {
	if t.IsCancelled() {
		return ErrCancelled
	}
	return nil
}

// CancelOnDone sets the token when ctx is done. A context that is already
// done cancels the token before CancelOnDone returns. The returned stop
// function releases the watcher without cancelling; it is safe to call more
// than once.
func (t *Token) CancelOnDone(ctx context.Context) (stop func() bool) {
	if ctx.Err() != nil {
		t.Cancel()
	}
	return context.AfterFunc(ctx, t.Cancel)
}
