package capture

import (
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/soocke/pixel-finder-go/domain/vision"
)

const defaultStatsLogInterval = 5 * time.Second

// Instrumented wraps a Capturer and records capture counts, failures and
// latency. Stats are logged at debug level at most once per log interval,
// piggybacking on capture calls.
type Instrumented struct {
	inner        Capturer
	logger       *slog.Logger
	logEvery     time.Duration
	captures     atomic.Uint64
	failures     atomic.Uint64
	captureNanos atomic.Uint64
	lastCapture  atomic.Int64 // unix nanos
	lastLog      atomic.Int64 // unix nanos
}

// NewInstrumented wraps inner. logEvery <= 0 uses five seconds.
func NewInstrumented(inner Capturer, logger *slog.Logger, logEvery time.Duration) *Instrumented {
	if logger == nil {
		logger = slog.Default()
	}
	if logEvery <= 0 {
		logEvery = defaultStatsLogInterval
	}
	c := &Instrumented{inner: inner, logger: logger, logEvery: logEvery}
	c.lastLog.Store(time.Now().UnixNano())
	return c
}

func (c *Instrumented) Capture() (image.Image, error) {
	start := time.Now()
	img, err := c.inner.Capture()
	c.record(start, err)
	return img, err
}

func (c *Instrumented) CaptureRegion(r vision.Region) (image.Image, error) {
	start := time.Now()
	img, err := c.inner.CaptureRegion(r)
	c.record(start, err)
	return img, err
}

func (c *Instrumented) record(start time.Time, err error) {
	now := time.Now()
	if err != nil {
		c.failures.Add(1)
	} else {
		c.captures.Add(1)
		c.captureNanos.Add(uint64(now.Sub(start).Nanoseconds()))
		c.lastCapture.Store(now.UnixNano())
	}
	last := c.lastLog.Load()
	if now.UnixNano()-last >= int64(c.logEvery) && c.lastLog.CompareAndSwap(last, now.UnixNano()) {
		c.LogStats()
	}
}

// Stats returns a snapshot of the counters.
func (c *Instrumented) Stats() CaptureStats {
	captures := c.captures.Load()
	total := c.captureNanos.Load()
	var avg time.Duration
	if captures > 0 {
		avg = time.Duration(total / captures)
	}
	var last time.Time
	var age time.Duration
	if ns := c.lastCapture.Load(); ns != 0 {
		last = time.Unix(0, ns)
		age = time.Since(last)
	}
	return CaptureStats{
		Captures:    captures,
		Failures:    c.failures.Load(),
		AvgCapture:  avg,
		LastCapture: last,
		LastAge:     age,
	}
}

func (c *Instrumented) LogStats() {
	stats := c.Stats()
	c.logger.Debug("capture.stats",
		"captures", stats.Captures,
		"failures", stats.Failures,
		"avg_capture", stats.AvgCapture,
		"age", stats.LastAge,
	)
}

var _ Capturer = (*Instrumented)(nil)
