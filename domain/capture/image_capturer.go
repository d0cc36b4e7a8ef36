package capture

import (
	"errors"
	"image"
	"sync/atomic"

	"github.com/disintegration/imaging"

	"github.com/soocke/pixel-finder-go/domain/vision"
)

// ImageCapturer serves a stored image as if it were the screen. It backs
// offline runs (a screenshot file instead of the live display) and tests.
// SetImage swaps the frame atomically while captures are in flight.
type ImageCapturer struct {
	frame atomic.Pointer[image.NRGBA]
}

// NewImageCapturer returns a capturer serving img.
func NewImageCapturer(img image.Image) *ImageCapturer {
	c := &ImageCapturer{}
	c.SetImage(img)
	return c
}

// OpenImageCapturer loads a screenshot file.
func OpenImageCapturer(path string) (*ImageCapturer, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	return NewImageCapturer(img), nil
}

// SetImage replaces the served frame. A nil image makes captures fail.
func (c *ImageCapturer) SetImage(img image.Image) {
	if img == nil {
		c.frame.Store(nil)
		return
	}
	c.frame.Store(imaging.Clone(img))
}

func (c *ImageCapturer) Capture() (image.Image, error) {
	f := c.frame.Load()
	if f == nil {
		return nil, fullError(errors.New("no image loaded"))
	}
	return f, nil
}

// CaptureRegion crops r out of the stored frame, clipped like a real screen.
func (c *ImageCapturer) CaptureRegion(r vision.Region) (image.Image, error) {
	f := c.frame.Load()
	if f == nil {
		return nil, regionError(r, errors.New("no image loaded"))
	}
	rect, err := clipToScreen(r, f.Bounds())
	if err != nil {
		return nil, regionError(r, err)
	}
	return imaging.Crop(f, rect), nil
}

var _ Capturer = (*ImageCapturer)(nil)
