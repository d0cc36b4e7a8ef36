package finder

// Polling search operations. Every temporal call runs the same loop: check
// the cancellation token, capture once, evaluate, then either finish or
// sleep one scan interval. A capture failure ends the call.

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/pixel-finder-go/domain/cancel"
	"github.com/soocke/pixel-finder-go/domain/capture"
	"github.com/soocke/pixel-finder-go/domain/vision"
)

const (
	DefaultScanInterval = 50 * time.Millisecond
	MinScanInterval     = 10 * time.Millisecond
)

// DefaultTimeouts used by the CLI when no explicit timeout is given.
const (
	DefaultWaitTimeout   = 3 * time.Second
	DefaultExistsTimeout = 0
)

// Finder searches the screen, or one region of it, for patterns. The zero
// value is not usable; construct with NewFinder. Builders return copies so a
// scoped or cancellable finder can be derived without touching the receiver.
type Finder struct {
	capturer      capture.Capturer
	matcher       vision.Matcher
	interval      time.Duration
	diffThreshold int
	scope         *vision.Region
	token         *cancel.Token
	logger        *slog.Logger
}

// NewFinder returns a finder over c. A nil logger uses slog.Default().
func NewFinder(c capture.Capturer, logger *slog.Logger) Finder {
	if logger == nil {
		logger = slog.Default()
	}
	return Finder{
		capturer:      c,
		matcher:       vision.NewMatcher(),
		interval:      DefaultScanInterval,
		diffThreshold: vision.PixelDiffThreshold,
		logger:        logger,
	}
}

func (f Finder) WithMinSimilarity(s float64) Finder {
	f.matcher = f.matcher.WithMinSimilarity(s)
	return f
}

func (f Finder) WithWorkers(n int) Finder {
	f.matcher = f.matcher.WithWorkers(n)
	return f
}

// WithScanInterval sets the sleep between polls, floored at MinScanInterval.
func (f Finder) WithScanInterval(d time.Duration) Finder {
	f.interval = max(d, MinScanInterval)
	return f
}

// WithPixelDiffThreshold sets the luminance delta above which OnChange counts
// a pixel as changed. Values outside [0,255] are ignored.
func (f Finder) WithPixelDiffThreshold(v int) Finder {
	if v >= 0 && v <= 255 {
		f.diffThreshold = v
	}
	return f
}

// In restricts captures to r. Matches are still reported in screen
// coordinates.
func (f Finder) In(r vision.Region) Finder {
	f.scope = &r
	return f
}

// WithCancel makes every temporal call observe tok.
func (f Finder) WithCancel(tok *cancel.Token) Finder {
	f.token = tok
	return f
}

func (f Finder) ScanInterval() time.Duration { return f.interval }

func (f Finder) Scope() (vision.Region, bool) {
	if f.scope == nil {
		return vision.Region{}, false
	}
	return *f.scope, true
}

func (f Finder) grab() (image.Image, error) {
	if f.scope != nil {
		return f.capturer.CaptureRegion(*f.scope)
	}
	return f.capturer.Capture()
}

func (f Finder) origin() (int, int) {
	if f.scope == nil {
		return 0, 0
	}
	return f.scope.X, f.scope.Y
}

// Find performs a single capture and returns the best match at or above
// the pattern's threshold.
func (f Finder) Find(p vision.Pattern) (vision.Match, bool, error) {
	tmpl, err := p.Decode()
	if err != nil {
		return vision.Match{}, false, err
	}
	return f.findOnce(p, vision.Precompute(tmpl))
}

// FindAll performs a single capture and returns every non-overlapping match
// in descending score order.
func (f Finder) FindAll(p vision.Pattern) ([]vision.Match, error) {
	tmpl, err := p.Decode()
	if err != nil {
		return nil, err
	}
	img, err := f.grab()
	if err != nil {
		return nil, err
	}
	matches := f.matcher.FindAllStats(vision.Prepare(img), p, vision.Precompute(tmpl))
	dx, dy := f.origin()
	for i := range matches {
		matches[i] = matches[i].Translate(dx, dy)
	}
	return matches, nil
}

func (f Finder) findOnce(p vision.Pattern, st *vision.TemplateStats) (vision.Match, bool, error) {
	img, err := f.grab()
	if err != nil {
		return vision.Match{}, false, err
	}
	m, ok := f.matcher.FindStats(vision.Prepare(img), p, st)
	if !ok {
		return vision.Match{}, false, nil
	}
	dx, dy := f.origin()
	return m.Translate(dx, dy), true, nil
}

// Wait polls until p appears or timeout elapses. A timeout yields a
// *FindFailedError.
func (f Finder) Wait(p vision.Pattern, timeout time.Duration) (vision.Match, error) {
	m, ok, err := f.search("wait", p, timeout)
	if err != nil {
		return vision.Match{}, err
	}
	if !ok {
		return vision.Match{}, &FindFailedError{Pattern: p.Name(), Timeout: timeout}
	}
	return m, nil
}

// Exists is Wait without the timeout error. A zero timeout performs exactly
// one capture and never sleeps.
func (f Finder) Exists(p vision.Pattern, timeout time.Duration) (vision.Match, bool, error) {
	return f.search("exists", p, timeout)
}

func (f Finder) search(op string, p vision.Pattern, timeout time.Duration) (vision.Match, bool, error) {
	tmpl, err := p.Decode()
	if err != nil {
		return vision.Match{}, false, err
	}
	st := vision.Precompute(tmpl)
	var found vision.Match
	state, err := f.poll(op, timeout, func() (bool, error) {
		m, ok, err := f.findOnce(p, st)
		if ok {
			found = m
		}
		return ok, err
	})
	if err != nil {
		return vision.Match{}, false, err
	}
	if state != stateFound {
		return vision.Match{}, false, nil
	}
	f.logger.Debug("pattern found", slog.String("op", op), slog.String("pattern", p.Name()),
		slog.String("match", found.String()))
	return found, true, nil
}

// WaitVanish polls until p is absent from a capture. It reports false when p
// is still present at timeout.
func (f Finder) WaitVanish(p vision.Pattern, timeout time.Duration) (bool, error) {
	tmpl, err := p.Decode()
	if err != nil {
		return false, err
	}
	st := vision.Precompute(tmpl)
	state, err := f.poll("wait_vanish", timeout, func() (bool, error) {
		_, ok, err := f.findOnce(p, st)
		return !ok && err == nil, err
	})
	if err != nil {
		return false, err
	}
	return state == stateFound, nil
}

// OnChange captures a reference image of r, then repeatedly sleeps and
// recaptures until the percentage of changed pixels reaches minChangePercent.
// An empty r falls back to the finder's scope, or the whole screen.
func (f Finder) OnChange(r vision.Region, timeout time.Duration, minChangePercent float64) (bool, error) {
	grab := f.grab
	if !r.Empty() {
		grab = func() (image.Image, error) { return f.capturer.CaptureRegion(r) }
	}
	if f.token.IsCancelled() {
		return false, &CancelledError{Op: "on_change"}
	}
	ref, err := grab()
	if err != nil {
		return false, err
	}
	refLuma := vision.FromImage(ref)

	first := true
	state, err := f.poll("on_change", timeout, func() (bool, error) {
		if first {
			// the reference capture stands in for the first poll
			first = false
			return false, nil
		}
		img, err := grab()
		if err != nil {
			return false, err
		}
		pct := vision.ChangedFractionAbove(refLuma, vision.FromImage(img), f.diffThreshold) * 100
		return pct >= minChangePercent, nil
	})
	if err != nil {
		return false, err
	}
	return state == stateFound, nil
}

// WaitFor polls cond with the finder's interval, token and timeout. It
// reports whether cond became true.
func (f Finder) WaitFor(timeout time.Duration, cond func() (bool, error)) (bool, error) {
	state, err := f.poll("wait_for", timeout, cond)
	if err != nil {
		return false, err
	}
	return state == stateFound, nil
}

// poll drives step until it reports true, fails, the timeout elapses or the
// token is observed set. An observed cancellation wins over both success and
// timeout.
func (f Finder) poll(op string, timeout time.Duration, step func() (bool, error)) (pollState, error) {
	dl := newDeadline(timeout)
	polls := 0
	state := statePoll
	for state == statePoll {
		if f.token.IsCancelled() {
			state = stateCancelled
			break
		}
		ok, err := step()
		polls++
		if err != nil {
			f.logger.Warn("poll failed", slog.String("op", op), slog.Int("polls", polls), slog.Any("err", err))
			return statePoll, err
		}
		switch {
		case f.token.IsCancelled():
			state = stateCancelled
		case ok:
			state = stateFound
		case dl.expired():
			state = stateTimeout
		default:
			time.Sleep(min(f.interval, dl.remaining()))
		}
	}
	elapsed := dl.elapsed()
	f.logger.Debug("poll finished", slog.String("op", op), slog.String("state", state.String()),
		slog.Int("polls", polls), slog.Duration("elapsed", elapsed))
	if state == stateCancelled {
		return state, &CancelledError{Op: op, Elapsed: elapsed}
	}
	return state, nil
}
