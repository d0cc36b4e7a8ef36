package finder

import "time"

// deadline tracks the time budget of one polling call.
type deadline struct {
	start   time.Time
	timeout time.Duration
}

func newDeadline(timeout time.Duration) *deadline {
	return &deadline{start: time.Now(), timeout: timeout}
}

func (d *deadline) expired() bool { return d.elapsed() >= d.timeout }

func (d *deadline) elapsed() time.Duration { return time.Since(d.start) }

// remaining never goes below zero.
func (d *deadline) remaining() time.Duration {
	return max(d.timeout-d.elapsed(), 0)
}

func (d *deadline) reset() { d.start = time.Now() }

// check returns a *FindFailedError naming what once the budget is spent.
func (d *deadline) check(what string) error {
	if d.expired() {
		return &FindFailedError{Pattern: what, Timeout: d.timeout}
	}
	return nil
}
