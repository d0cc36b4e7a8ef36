// Package visiontest builds synthetic frames and patterns for tests.
package visiontest

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
	"math/rand/v2"

	"github.com/soocke/pixel-finder-go/domain/vision"
)

// Canvas returns a w x h opaque image filled with gray level lum.
func Canvas(w, h int, lum byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = lum, lum, lum, 255
	}
	return img
}

// Noise returns a w x h gray noise image. The same seed gives the same image.
func Noise(w, h int, seed uint64) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		v := byte(rng.IntN(256))
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return img
}

// FramedRect returns a w x h white rectangle with a dark border of width b.
func FramedRect(w, h, b int) *image.RGBA {
	img := Canvas(w, h, 255)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < b || y < b || x >= w-b || y >= h-b {
				i := img.PixOffset(x, y)
				img.Pix[i], img.Pix[i+1], img.Pix[i+2] = 32, 32, 32
			}
		}
	}
	return img
}

// Fill paints r with gray level lum.
func Fill(dst *image.RGBA, r image.Rectangle, lum byte) {
	r = r.Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := dst.PixOffset(x, y)
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = lum, lum, lum
		}
	}
}

// Embed returns a copy of dst with src drawn at (x, y).
func Embed(dst *image.RGBA, src image.Image, x, y int) *image.RGBA {
	out := image.NewRGBA(dst.Bounds())
	copy(out.Pix, dst.Pix)
	r := src.Bounds().Sub(src.Bounds().Min).Add(image.Pt(x, y))
	draw.Draw(out, r, src, src.Bounds().Min, draw.Src)
	return out
}

// EncodePNG encodes img or panics; test inputs are always encodable.
func EncodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Pattern wraps img as a pattern with the given similarity.
func Pattern(img image.Image, similarity float64) vision.Pattern {
	return vision.NewPattern(EncodePNG(img)).Similar(similarity)
}
