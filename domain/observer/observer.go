package observer

import (
	"errors"
	"image"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/pixel-finder-go/domain/capture"
	"github.com/soocke/pixel-finder-go/domain/vision"
)

const (
	DefaultInterval = 500 * time.Millisecond
	MinInterval     = 10 * time.Millisecond
)

// ErrAlreadyRunning is returned when a run is requested while one is active.
var ErrAlreadyRunning = errors.New("observer already running")

type (
	AppearFunc func(vision.Match)
	VanishFunc func()
	// ChangeFunc receives the fraction of changed pixels in [0,1].
	ChangeFunc func(amount float64)
)

type appearHandler struct {
	pattern vision.Pattern
	fn      AppearFunc
}

type vanishHandler struct {
	pattern  vision.Pattern
	seen     bool
	lastSeen time.Time
	fn       VanishFunc
}

type changeHandler struct {
	threshold float64
	baseline  *vision.Luma
	fn        ChangeFunc
}

// Observer watches one screen region and dispatches appear, vanish and
// change handlers on every poll. Registration is safe while running.
type Observer struct {
	capturer capture.Capturer
	region   vision.Region
	logger   *slog.Logger

	running atomic.Bool
	gen     atomic.Uint64

	mu            sync.Mutex
	interval      time.Duration
	matcher       vision.Matcher
	diffThreshold int
	appear        []appearHandler
	vanish        []vanishHandler
	change        []changeHandler
}

// New returns an observer of region r. An empty region observes the whole
// screen. A nil logger uses slog.Default().
func New(c capture.Capturer, r vision.Region, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		capturer:      c,
		region:        r,
		logger:        logger,
		interval:      DefaultInterval,
		matcher:       vision.NewMatcher(),
		diffThreshold: vision.PixelDiffThreshold,
	}
}

func (o *Observer) Region() vision.Region { return o.region }

// SetInterval sets the sleep between polls, floored at MinInterval.
func (o *Observer) SetInterval(d time.Duration) {
	o.mu.Lock()
	o.interval = max(d, MinInterval)
	o.mu.Unlock()
}

func (o *Observer) Interval() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.interval
}

func (o *Observer) SetMinSimilarity(s float64) {
	o.mu.Lock()
	o.matcher = o.matcher.WithMinSimilarity(s)
	o.mu.Unlock()
}

func (o *Observer) SetWorkers(n int) {
	o.mu.Lock()
	o.matcher = o.matcher.WithWorkers(n)
	o.mu.Unlock()
}

// SetPixelDiffThreshold sets the per-pixel luminance delta counted as a
// change. Values outside [0,255] are ignored.
func (o *Observer) SetPixelDiffThreshold(v int) {
	if v < 0 || v > 255 {
		return
	}
	o.mu.Lock()
	o.diffThreshold = v
	o.mu.Unlock()
}

// OnAppear calls fn with the match on every poll where p is found.
func (o *Observer) OnAppear(p vision.Pattern, fn AppearFunc) {
	o.mu.Lock()
	o.appear = append(o.appear, appearHandler{pattern: p, fn: fn})
	o.mu.Unlock()
}

// OnVanish calls fn once each time p goes from found to not found.
func (o *Observer) OnVanish(p vision.Pattern, fn VanishFunc) {
	o.mu.Lock()
	o.vanish = append(o.vanish, vanishHandler{pattern: p, fn: fn})
	o.mu.Unlock()
}

// OnChange calls fn when the fraction of changed pixels since the baseline
// reaches threshold. The first poll records the baseline; a firing poll
// replaces it.
func (o *Observer) OnChange(threshold float64, fn ChangeFunc) {
	o.mu.Lock()
	o.change = append(o.change, changeHandler{threshold: min(max(threshold, 0), 1), fn: fn})
	o.mu.Unlock()
}

// HandlerCounts reports the number of appear, vanish and change handlers.
func (o *Observer) HandlerCounts() (appear, vanish, change int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.appear), len(o.vanish), len(o.change)
}

func (o *Observer) IsRunning() bool { return o.running.Load() }

// Stop requests the current run to end after its in-flight iteration. It
// is a no-op when nothing runs.
func (o *Observer) Stop() {
	if o.running.CompareAndSwap(true, false) {
		o.logger.Info("observer stop requested", slog.String("region", o.region.String()))
	}
}

// Observe polls on the caller's goroutine until Stop is called or timeout
// elapses. A zero timeout runs until stopped.
func (o *Observer) Observe(timeout time.Duration) error {
	gen, err := o.start()
	if err != nil {
		return err
	}
	o.run(gen, timeout)
	return nil
}

// Handle tracks a background run.
type Handle struct {
	done chan struct{}
}

// Done is closed when the background loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the background loop has exited.
func (h *Handle) Wait() { <-h.done }

// ObserveInBackground starts an unbounded run on its own goroutine. The
// observer is running when it returns.
func (o *Observer) ObserveInBackground() (*Handle, error) {
	gen, err := o.start()
	if err != nil {
		return nil, err
	}
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		o.run(gen, 0)
	}()
	return h, nil
}

func (o *Observer) start() (uint64, error) {
	if !o.running.CompareAndSwap(false, true) {
		return 0, ErrAlreadyRunning
	}
	return o.gen.Add(1), nil
}

// active reports whether run gen should keep polling. A stopped run whose
// observer was restarted sees a newer generation and exits.
func (o *Observer) active(gen uint64) bool {
	return o.running.Load() && o.gen.Load() == gen
}

func (o *Observer) run(gen uint64, timeout time.Duration) {
	start := time.Now()
	a, v, c := o.HandlerCounts()
	o.logger.Info("observer started", slog.String("region", o.region.String()),
		slog.Int("appear", a), slog.Int("vanish", v), slog.Int("change", c), slog.Duration("timeout", timeout))
	polls := 0
	defer func() {
		if o.gen.Load() == gen {
			o.running.Store(false)
		}
		o.logger.Info("observer stopped", slog.String("region", o.region.String()),
			slog.Int("polls", polls), slog.Duration("elapsed", time.Since(start)))
	}()

	for o.active(gen) {
		o.poll()
		polls++
		if timeout > 0 && time.Since(start) >= timeout {
			return
		}
		time.Sleep(o.Interval())
	}
}

func (o *Observer) grab() (image.Image, error) {
	if o.region.Empty() {
		return o.capturer.Capture()
	}
	return o.capturer.CaptureRegion(o.region)
}

// poll runs one iteration: capture once, evaluate every handler, update
// per-handler state under the lock, then invoke callbacks outside it.
func (o *Observer) poll() {
	img, err := o.grab()
	if err != nil {
		o.logger.Error("observer capture failed", slog.String("region", o.region.String()), slog.Any("err", err))
		return
	}
	frame := vision.Prepare(img)
	now := time.Now()

	o.mu.Lock()
	appear := slices.Clone(o.appear)
	vanishPatterns := make([]vision.Pattern, len(o.vanish))
	for i, h := range o.vanish {
		vanishPatterns[i] = h.pattern
	}
	matcher := o.matcher
	o.mu.Unlock()

	var calls []func()
	for _, h := range appear {
		m, ok := o.find(matcher, frame, h.pattern)
		if ok {
			fn := h.fn
			calls = append(calls, func() { fn(m) })
		}
	}
	found := make([]bool, len(vanishPatterns))
	for i, p := range vanishPatterns {
		_, found[i] = o.find(matcher, frame, p)
	}

	o.mu.Lock()
	for i, ok := range found {
		h := &o.vanish[i]
		switch {
		case ok:
			h.seen, h.lastSeen = true, now
		case h.seen:
			h.seen = false
			calls = append(calls, h.fn)
		}
	}
	for i := range o.change {
		h := &o.change[i]
		if h.baseline == nil {
			h.baseline = frame.Luma
			continue
		}
		amount := vision.ChangedFractionAbove(h.baseline, frame.Luma, o.diffThreshold)
		if amount >= h.threshold {
			h.baseline = frame.Luma
			fn := h.fn
			calls = append(calls, func() { fn(amount) })
		}
	}
	o.mu.Unlock()

	for _, call := range calls {
		o.invoke(call)
	}
}

// find searches frame for p and reports matches in screen coordinates.
func (o *Observer) find(m vision.Matcher, frame *vision.Frame, p vision.Pattern) (vision.Match, bool) {
	match, ok, err := m.FindInFrame(frame, p)
	if err != nil {
		o.logger.Warn("observer pattern skipped", slog.String("pattern", p.Name()), slog.Any("err", err))
		return vision.Match{}, false
	}
	if !ok {
		return vision.Match{}, false
	}
	return match.Translate(o.region.X, o.region.Y), true
}

func (o *Observer) invoke(fn func()) {
	defer recoverLog(o.logger, "observer handler panic")
	fn()
}

func recoverLog(logger *slog.Logger, msg string) {
	if r := recover(); r != nil {
		logger.Error(msg, "error", r)
	}
}
