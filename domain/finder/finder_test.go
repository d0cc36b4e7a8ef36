package finder

import (
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/soocke/pixel-finder-go/domain/cancel"
	"github.com/soocke/pixel-finder-go/domain/capture"
	"github.com/soocke/pixel-finder-go/domain/vision"
	"github.com/soocke/pixel-finder-go/domain/vision/visiontest"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// scriptCapturer replays frames in order and repeats the last one.
type scriptCapturer struct {
	mu      sync.Mutex
	frames  []image.Image
	calls   int
	regions []vision.Region
	err     error
	// onCapture runs after each capture with the 1-based call count.
	onCapture func(n int)
}

func (s *scriptCapturer) next() (image.Image, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	var img image.Image
	if len(s.frames) > 0 {
		img = s.frames[min(n, len(s.frames))-1]
	}
	err := s.err
	hook := s.onCapture
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *scriptCapturer) Capture() (image.Image, error) { return s.next() }

func (s *scriptCapturer) CaptureRegion(r vision.Region) (image.Image, error) {
	s.mu.Lock()
	s.regions = append(s.regions, r)
	s.mu.Unlock()
	return s.next()
}

func (s *scriptCapturer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fixture struct {
	pattern vision.Pattern
	present image.Image
	absent  image.Image
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	tmpl := visiontest.FramedRect(12, 8, 2)
	bg := visiontest.Canvas(80, 60, 0)
	return fixture{
		pattern: visiontest.Pattern(tmpl, 0.9),
		present: visiontest.Embed(bg, tmpl, 30, 20),
		absent:  bg,
	}
}

func newTestFinder(c capture.Capturer) Finder {
	return NewFinder(c, discardLogger).WithScanInterval(MinScanInterval).WithWorkers(1)
}

func TestFinder_ScanIntervalFloor(t *testing.T) {
	f := NewFinder(&scriptCapturer{}, nil).WithScanInterval(time.Millisecond)
	if got := f.ScanInterval(); got != MinScanInterval {
		t.Fatalf("interval = %v, want %v", got, MinScanInterval)
	}
	if got := NewFinder(&scriptCapturer{}, nil).ScanInterval(); got != DefaultScanInterval {
		t.Fatalf("default interval = %v", got)
	}
}

func TestFinder_FindSingleCapture(t *testing.T) {
	fx := newFixture(t)
	c := &scriptCapturer{frames: []image.Image{fx.present}}
	m, ok, err := newTestFinder(c).Find(fx.pattern)
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if m.X != 30 || m.Y != 20 {
		t.Fatalf("match at (%d,%d), want (30,20)", m.X, m.Y)
	}
	if c.count() != 1 {
		t.Fatalf("captures = %d, want 1", c.count())
	}
}

func TestFinder_WaitFindsOnThirdCapture(t *testing.T) {
	fx := newFixture(t)
	c := &scriptCapturer{frames: []image.Image{fx.absent, fx.absent, fx.present}}
	m, err := newTestFinder(c).Wait(fx.pattern, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if m.X != 30 || m.Y != 20 || m.Score < 0.99 {
		t.Fatalf("unexpected match %v", m)
	}
	if c.count() != 3 {
		t.Fatalf("captures = %d, want 3", c.count())
	}
}

func TestFinder_WaitTimeout(t *testing.T) {
	fx := newFixture(t)
	c := &scriptCapturer{frames: []image.Image{fx.absent}}
	timeout := 60 * time.Millisecond
	start := time.Now()
	_, err := newTestFinder(c).Wait(fx.pattern.Named("button"), timeout)
	if time.Since(start) < timeout {
		t.Fatalf("returned before timeout")
	}
	var ffe *FindFailedError
	if !errors.As(err, &ffe) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected FindFailedError, got %v", err)
	}
	if ffe.Pattern != "button" || ffe.Timeout != timeout {
		t.Fatalf("unexpected error details %+v", ffe)
	}
}

func TestFinder_ExistsZeroTimeoutCapturesOnce(t *testing.T) {
	fx := newFixture(t)
	c := &scriptCapturer{frames: []image.Image{fx.absent, fx.present}}
	f := NewFinder(c, discardLogger).WithScanInterval(time.Second)
	start := time.Now()
	_, ok, err := f.Exists(fx.pattern, 0)
	if err != nil || ok {
		t.Fatalf("exists: ok=%v err=%v", ok, err)
	}
	if c.count() != 1 {
		t.Fatalf("captures = %d, want 1", c.count())
	}
	if time.Since(start) >= time.Second {
		t.Fatalf("exists with zero timeout slept")
	}
}

func TestFinder_ExistsPresent(t *testing.T) {
	fx := newFixture(t)
	c := &scriptCapturer{frames: []image.Image{fx.present}}
	m, ok, err := newTestFinder(c).Exists(fx.pattern, 0)
	if err != nil || !ok || m.X != 30 {
		t.Fatalf("exists: m=%v ok=%v err=%v", m, ok, err)
	}
}

func TestFinder_WaitVanish(t *testing.T) {
	fx := newFixture(t)
	c := &scriptCapturer{frames: []image.Image{fx.present, fx.present, fx.absent}}
	gone, err := newTestFinder(c).WaitVanish(fx.pattern, 2*time.Second)
	if err != nil || !gone {
		t.Fatalf("wait vanish: gone=%v err=%v", gone, err)
	}
	if c.count() != 3 {
		t.Fatalf("captures = %d, want 3", c.count())
	}

	c = &scriptCapturer{frames: []image.Image{fx.present}}
	gone, err = newTestFinder(c).WaitVanish(fx.pattern, 40*time.Millisecond)
	if err != nil || gone {
		t.Fatalf("still present: gone=%v err=%v", gone, err)
	}
}

func TestFinder_OnChange(t *testing.T) {
	a := visiontest.Canvas(20, 10, 0)
	half := visiontest.Canvas(20, 10, 0)
	visiontest.Fill(half, image.Rect(0, 0, 10, 10), 255)

	r := vision.NewRegion(5, 5, 20, 10)
	c := &scriptCapturer{frames: []image.Image{a, a, half}}
	changed, err := newTestFinder(c).OnChange(r, 2*time.Second, 50)
	if err != nil || !changed {
		t.Fatalf("on change: changed=%v err=%v", changed, err)
	}
	if c.count() != 3 {
		t.Fatalf("captures = %d, want reference plus two", c.count())
	}
	for _, got := range c.regions {
		if got != r {
			t.Fatalf("captured %v, want %v", got, r)
		}
	}

	c = &scriptCapturer{frames: []image.Image{a, half}}
	changed, err = newTestFinder(c).OnChange(r, 40*time.Millisecond, 60)
	if err != nil || changed {
		t.Fatalf("50%% change must not satisfy 60%%: changed=%v err=%v", changed, err)
	}
}

func TestFinder_ScopedMatchesAreTranslated(t *testing.T) {
	fx := newFixture(t)
	scope := vision.NewRegion(100, 200, 80, 60)
	c := &scriptCapturer{frames: []image.Image{fx.present}}
	m, ok, err := newTestFinder(c).In(scope).Find(fx.pattern)
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if m.X != 130 || m.Y != 220 {
		t.Fatalf("match at (%d,%d), want (130,220)", m.X, m.Y)
	}
	if len(c.regions) != 1 || c.regions[0] != scope {
		t.Fatalf("captured regions %v", c.regions)
	}
}

func TestFinder_FindAllTranslated(t *testing.T) {
	tmpl := visiontest.FramedRect(10, 10, 2)
	img := visiontest.Embed(visiontest.Embed(visiontest.Canvas(100, 40, 0), tmpl, 5, 5), tmpl, 60, 20)
	c := &scriptCapturer{frames: []image.Image{img}}
	matches, err := newTestFinder(c).In(vision.NewRegion(10, 10, 100, 40)).FindAll(visiontest.Pattern(tmpl, 0.95))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	seen := map[image.Point]bool{}
	for _, m := range matches {
		seen[image.Pt(m.X, m.Y)] = true
	}
	if !seen[image.Pt(15, 15)] || !seen[image.Pt(70, 30)] {
		t.Fatalf("unexpected matches %v", matches)
	}
}

func TestFinder_CancelledBeforeStart(t *testing.T) {
	fx := newFixture(t)
	tok := cancel.New()
	tok.Cancel()
	c := &scriptCapturer{frames: []image.Image{fx.present}}
	_, err := newTestFinder(c).WithCancel(tok).Wait(fx.pattern, time.Second)
	var ce *CancelledError
	if !errors.As(err, &ce) || !errors.Is(err, cancel.ErrCancelled) {
		t.Fatalf("expected CancelledError, got %v", err)
	}
	if ce.Op != "wait" {
		t.Fatalf("op = %q", ce.Op)
	}
	if c.count() != 0 {
		t.Fatalf("cancelled call captured %d times", c.count())
	}
}

func TestFinder_CancellationBeatsPresentPattern(t *testing.T) {
	fx := newFixture(t)
	tok := cancel.New()
	c := &scriptCapturer{frames: []image.Image{fx.absent, fx.present}}
	// cancel while the second capture, which contains the pattern, is taken
	c.onCapture = func(n int) {
		if n == 2 {
			tok.Cancel()
		}
	}
	_, ok, err := newTestFinder(c).WithCancel(tok).Exists(fx.pattern, time.Second)
	if ok || !errors.Is(err, cancel.ErrCancelled) {
		t.Fatalf("expected cancellation, got ok=%v err=%v", ok, err)
	}
}

func TestFinder_CancelFromAnotherGoroutine(t *testing.T) {
	fx := newFixture(t)
	tok := cancel.New()
	c := &scriptCapturer{frames: []image.Image{fx.present}}
	go func() {
		time.Sleep(30 * time.Millisecond)
		tok.Cancel()
	}()
	start := time.Now()
	gone, err := newTestFinder(c).WithCancel(tok).WaitVanish(fx.pattern, 5*time.Second)
	if !errors.Is(err, cancel.ErrCancelled) {
		t.Fatalf("expected cancellation, got gone=%v err=%v", gone, err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("cancellation was not observed promptly")
	}
}

func TestFinder_CaptureFailureIsFatal(t *testing.T) {
	fx := newFixture(t)
	c := &scriptCapturer{err: &capture.CaptureError{Op: "capture", Err: errors.New("no display")}}
	_, err := newTestFinder(c).Wait(fx.pattern, time.Second)
	if !errors.Is(err, capture.ErrCapture) {
		t.Fatalf("expected capture error, got %v", err)
	}
	if c.count() != 1 {
		t.Fatalf("captures = %d, want 1", c.count())
	}
}

func TestFinder_InvalidPattern(t *testing.T) {
	c := &scriptCapturer{}
	_, err := newTestFinder(c).Wait(vision.NewPattern([]byte("not an image")), time.Second)
	if !errors.Is(err, vision.ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}
	if c.count() != 0 {
		t.Fatalf("invalid pattern must not capture")
	}
}

func TestFinder_WaitFor(t *testing.T) {
	f := newTestFinder(&scriptCapturer{})
	n := 0
	ok, err := f.WaitFor(time.Second, func() (bool, error) {
		n++
		return n == 3, nil
	})
	if err != nil || !ok || n != 3 {
		t.Fatalf("wait for: ok=%v err=%v n=%d", ok, err, n)
	}

	ok, err = f.WaitFor(20*time.Millisecond, func() (bool, error) { return false, nil })
	if err != nil || ok {
		t.Fatalf("expected timeout, got ok=%v err=%v", ok, err)
	}
}

func TestPollState_String(t *testing.T) {
	cases := map[pollState]string{
		statePoll:      "poll",
		stateFound:     "found",
		stateTimeout:   "timeout",
		stateCancelled: "cancelled",
		pollState(42):  "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestFinder_CancellationBeatsTimeout(t *testing.T) {
	fx := newFixture(t)
	tok := cancel.New()
	timeout := 30 * time.Millisecond
	c := &scriptCapturer{frames: []image.Image{fx.absent}}
	// the only capture outlasts the deadline and the token is set during it
	c.onCapture = func(n int) {
		time.Sleep(timeout + 10*time.Millisecond)
		tok.Cancel()
	}
	_, err := newTestFinder(c).WithCancel(tok).Wait(fx.pattern, timeout)
	if !errors.Is(err, cancel.ErrCancelled) || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cancellation instead of timeout, got %v", err)
	}
	if c.count() != 1 {
		t.Fatalf("captures = %d, want 1", c.count())
	}
}
