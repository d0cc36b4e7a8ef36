package finder

import (
	"errors"
	"fmt"
	"time"

	"github.com/soocke/pixel-finder-go/domain/cancel"
)

// ErrNotFound is matched by the error Wait returns on timeout.
var ErrNotFound = errors.New("pattern not found")

// FindFailedError reports that Wait gave up after Timeout.
type FindFailedError struct {
	Pattern string
	Timeout time.Duration
}

func (e *FindFailedError) Error() string {
	return fmt.Sprintf("find failed: %s not found within %v", e.Pattern, e.Timeout)
}

func (e *FindFailedError) Unwrap() error { return ErrNotFound }

// CancelledError reports that Op observed its cancellation token. It
// matches cancel.ErrCancelled.
type CancelledError struct {
	Op      string
	Elapsed time.Duration
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s cancelled after %v", e.Op, e.Elapsed.Round(time.Millisecond))
}

func (e *CancelledError) Unwrap() error { return cancel.ErrCancelled }
