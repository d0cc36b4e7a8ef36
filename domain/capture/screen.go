package capture

import (
	"image"

	"github.com/soocke/pixel-finder-go/domain/vision"
)

// Screen captures the live primary display through the platform backend
// (Win32 GDI on Windows, the screenshot library elsewhere).
type Screen struct{}

func NewScreen() *Screen { return &Screen{} }

// Bounds returns the primary display rectangle.
func (s *Screen) Bounds() (image.Rectangle, error) {
	r, err := screenBounds()
	if err != nil {
		return image.Rectangle{}, fullError(err)
	}
	return r, nil
}

// Dimensions returns the width and height of the primary display.
func (s *Screen) Dimensions() (int, int, error) {
	r, err := s.Bounds()
	if err != nil {
		return 0, 0, err
	}
	return r.Dx(), r.Dy(), nil
}

// Region returns the full-screen region.
func (s *Screen) Region() (vision.Region, error) {
	r, err := s.Bounds()
	if err != nil {
		return vision.Region{}, err
	}
	return vision.RegionFromRect(r), nil
}

// Capture grabs the whole display through the same rectangle path as
// CaptureRegion.
func (s *Screen) Capture() (image.Image, error) {
	bounds, err := screenBounds()
	if err != nil {
		return nil, fullError(err)
	}
	img, err := grabRect(bounds)
	if err != nil {
		return nil, fullError(err)
	}
	return img, nil
}

// CaptureRegion grabs r clipped to the display. Regions entirely off-screen
// or with zero area fail.
func (s *Screen) CaptureRegion(r vision.Region) (image.Image, error) {
	bounds, err := screenBounds()
	if err != nil {
		return nil, regionError(r, err)
	}
	rect, err := clipToScreen(r, bounds)
	if err != nil {
		return nil, regionError(r, err)
	}
	img, err := grabRect(rect)
	if err != nil {
		return nil, regionError(r, err)
	}
	return img, nil
}

var _ Capturer = (*Screen)(nil)
