package vision

import (
	"image"

	"github.com/disintegration/imaging"
)

// Luma is a single-channel 8-bit luminance buffer in row-major order.
type Luma struct {
	Pix  []uint8
	W, H int
}

// NewLuma allocates a zeroed w x h buffer.
func NewLuma(w, h int) *Luma {
	w, h = max(w, 0), max(h, 0)
	return &Luma{Pix: make([]uint8, w*h), W: w, H: h}
}

// At returns the luminance at (x, y) relative to the buffer origin.
func (l *Luma) At(x, y int) uint8 { return l.Pix[y*l.W+x] }

// FromImage converts img to luminance using the integer BT.601 weights
// (77R + 150G + 29B) >> 8. Alpha is ignored.
func FromImage(img image.Image) *Luma {
	if img == nil {
		return NewLuma(0, 0)
	}
	switch src := img.(type) {
	case *image.Gray:
		return fromGray(src)
	case *image.RGBA:
		return fromInterleaved(src.Pix, src.Stride, src.Rect.Dx(), src.Rect.Dy())
	case *image.NRGBA:
		return fromInterleaved(src.Pix, src.Stride, src.Rect.Dx(), src.Rect.Dy())
	default:
		// imaging.Clone flattens any image model (YCbCr, paletted, 16-bit)
		// into a zero-origin NRGBA.
		n := imaging.Clone(img)
		return fromInterleaved(n.Pix, n.Stride, n.Rect.Dx(), n.Rect.Dy())
	}
}

func fromInterleaved(pix []uint8, stride, w, h int) *Luma {
	out := NewLuma(w, h)
	idx := 0
	for y := 0; y < h; y++ {
		row := pix[y*stride : y*stride+w*4]
		for x := 0; x < w; x++ {
			i := x * 4
			r, g, b := row[i], row[i+1], row[i+2]
			out.Pix[idx] = uint8((77*uint32(r) + 150*uint32(g) + 29*uint32(b)) >> 8)
			idx++
		}
	}
	return out
}

func fromGray(src *image.Gray) *Luma {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := NewLuma(w, h)
	for y := 0; y < h; y++ {
		copy(out.Pix[y*w:(y+1)*w], src.Pix[y*src.Stride:y*src.Stride+w])
	}
	return out
}

// squareIntegral is a summed-area table of squared luminance with one row
// and column of zero padding, so a window sum needs no edge checks.
type squareIntegral struct {
	sum    []uint64
	stride int
}

func buildSquareIntegral(l *Luma) *squareIntegral {
	stride := l.W + 1
	s := &squareIntegral{sum: make([]uint64, stride*(l.H+1)), stride: stride}
	for y := 0; y < l.H; y++ {
		var row uint64
		for x := 0; x < l.W; x++ {
			v := uint64(l.Pix[y*l.W+x])
			row += v * v
			s.sum[(y+1)*stride+x+1] = s.sum[y*stride+x+1] + row
		}
	}
	return s
}

// window returns the sum over [x, x+w) x [y, y+h).
func (s *squareIntegral) window(x, y, w, h int) uint64 {
	a := s.sum[y*s.stride+x]
	b := s.sum[y*s.stride+x+w]
	c := s.sum[(y+h)*s.stride+x]
	d := s.sum[(y+h)*s.stride+x+w]
	return d + a - b - c
}
