// Package capture adapts screen-capture backends to the Capturer interface
// consumed by the finder and the observer.
package capture

import (
	"errors"
	"fmt"
	"image"

	"github.com/soocke/pixel-finder-go/domain/vision"
)

// ErrCapture marks every failure reported by a capture backend.
var ErrCapture = errors.New("screen capture failed")

// Capturer acquires images of the primary display. Implementations must be
// safe for concurrent use; a single call cannot be aborted once started.
type Capturer interface {
	// Capture grabs the whole primary display.
	Capture() (image.Image, error)
	// CaptureRegion grabs r, given in screen coordinates. The returned
	// image's top-left pixel corresponds to the region origin.
	CaptureRegion(r vision.Region) (image.Image, error)
}

// CaptureError carries the failed operation and, for region grabs, the
// requested region. It matches ErrCapture with errors.Is.
type CaptureError struct {
	Op     string
	Region *vision.Region
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Region != nil {
		return fmt.Sprintf("capture: %s %v: %v", e.Op, *e.Region, e.Err)
	}
	return fmt.Sprintf("capture: %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() []error { return []error{ErrCapture, e.Err} }

func fullError(err error) error {
	return &CaptureError{Op: "full", Err: err}
}

func regionError(r vision.Region, err error) error {
	return &CaptureError{Op: "region", Region: &r, Err: err}
}

// clipToScreen intersects sel with the screen bounds.
func clipToScreen(sel vision.Region, screen image.Rectangle) (image.Rectangle, error) {
	if sel.Empty() {
		return image.Rectangle{}, errors.New("empty region")
	}
	r := sel.Rect().Intersect(screen)
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("region out of bounds screen=%v", screen)
	}
	return r, nil
}

// bgraToRGBA copies a top-down 32-bit BGRA buffer of w*h pixels into a new
// opaque RGBA image. The source alpha channel is ignored.
func bgraToRGBA(src []byte, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i+3 < len(dst.Pix) && i+3 < len(src); i += 4 {
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = src[i+2], src[i+1], src[i], 0xFF
	}
	return dst
}
