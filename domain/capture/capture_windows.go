//go:build windows

package capture

import (
	"fmt"
	"image"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	smCxScreen = 0
	smCyScreen = 1
	srccopy    = 0x00CC0020
	hgdiError  = ^uintptr(0)
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")

	getDC              = user32.NewProc("GetDC")
	releaseDC          = user32.NewProc("ReleaseDC")
	getSystemMetrics   = user32.NewProc("GetSystemMetrics")
	createCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	deleteDC           = gdi32.NewProc("DeleteDC")
	selectObject       = gdi32.NewProc("SelectObject")
	bitBlt             = gdi32.NewProc("BitBlt")
	createDIBSection   = gdi32.NewProc("CreateDIBSection")
	deleteObject       = gdi32.NewProc("DeleteObject")
)

// dibHeader mirrors BITMAPINFOHEADER followed by one unused RGBQUAD.
type dibHeader struct {
	size          uint32
	width         int32
	height        int32
	planes        uint16
	bitCount      uint16
	compression   uint32
	sizeImage     uint32
	xPelsPerMeter int32
	yPelsPerMeter int32
	clrUsed       uint32
	clrImportant  uint32
	_             [4]byte
}

func screenBounds() (image.Rectangle, error) {
	w, _, _ := getSystemMetrics.Call(smCxScreen)
	h, _, _ := getSystemMetrics.Call(smCyScreen)
	r := image.Rect(0, 0, int(int32(w)), int(int32(h)))
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("invalid screen size %dx%d", int32(w), int32(h))
	}
	return r, nil
}

// dibSection is a memory DC with a selected 32-bit top-down bitmap whose
// pixels are directly addressable.
type dibSection struct {
	screen, mem, bitmap uintptr
	bits                unsafe.Pointer
	w, h                int
}

func newDIBSection(w, h int) (*dibSection, error) {
	d := &dibSection{w: w, h: h}
	var err error
	if d.screen, err = call(getDC, 0); err != nil {
		return nil, fmt.Errorf("GetDC: %w", err)
	}
	if d.mem, err = call(createCompatibleDC, d.screen); err != nil {
		d.release()
		return nil, fmt.Errorf("CreateCompatibleDC: %w", err)
	}
	hdr := dibHeader{
		width:     int32(w),
		height:    -int32(h),
		planes:    1,
		bitCount:  32,
		sizeImage: uint32(w * h * 4),
	}
	hdr.size = uint32(unsafe.Offsetof(hdr.clrImportant) + unsafe.Sizeof(hdr.clrImportant))
	d.bitmap, err = call(createDIBSection, d.mem, uintptr(unsafe.Pointer(&hdr)), 0, uintptr(unsafe.Pointer(&d.bits)), 0, 0)
	if err != nil {
		d.release()
		return nil, fmt.Errorf("CreateDIBSection: %w", err)
	}
	if prev, err := call(selectObject, d.mem, d.bitmap); err != nil || prev == hgdiError {
		d.release()
		return nil, fmt.Errorf("SelectObject: %w", err)
	}
	return d, nil
}

// copyFrom blits the w*h screen area at (x, y) into the bitmap.
func (d *dibSection) copyFrom(x, y int) error {
	if _, err := call(bitBlt, d.mem, 0, 0, uintptr(d.w), uintptr(d.h), d.screen, uintptr(x), uintptr(y), srccopy); err != nil {
		return fmt.Errorf("BitBlt at (%d,%d) %dx%d: %w", x, y, d.w, d.h, err)
	}
	return nil
}

func (d *dibSection) pixels() []byte {
	return unsafe.Slice((*byte)(d.bits), d.w*d.h*4)
}

func (d *dibSection) release() {
	if d.bitmap != 0 {
		deleteObject.Call(d.bitmap)
	}
	if d.mem != 0 {
		deleteDC.Call(d.mem)
	}
	if d.screen != 0 {
		releaseDC.Call(0, d.screen)
	}
}

func grabRect(r image.Rectangle) (*image.RGBA, error) {
	if r.Empty() {
		return nil, fmt.Errorf("invalid rect %v", r)
	}
	d, err := newDIBSection(r.Dx(), r.Dy())
	if err != nil {
		return nil, err
	}
	defer d.release()
	if err := d.copyFrom(r.Min.X, r.Min.Y); err != nil {
		return nil, err
	}
	return bgraToRGBA(d.pixels(), d.w, d.h), nil
}

// call invokes p and treats a zero result as failure.
func call(p *windows.LazyProc, args ...uintptr) (uintptr, error) {
	r, _, err := p.Call(args...)
	if r == 0 {
		return 0, err
	}
	return r, nil
}
