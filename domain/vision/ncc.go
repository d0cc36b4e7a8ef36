package vision

import (
	"image"
	"math"
)

// TemplateStats caches the luminance of a template and its self
// sum-of-squares. It lives for a single search call.
type TemplateStats struct {
	Luma  *Luma
	SumT2 float64
}

// Precompute converts the template to luminance and sums its squared values.
func Precompute(tmpl image.Image) *TemplateStats {
	l := FromImage(tmpl)
	var sum uint64
	for _, v := range l.Pix {
		sum += uint64(v) * uint64(v)
	}
	return &TemplateStats{Luma: l, SumT2: float64(sum)}
}

// Score returns the normalized cross-correlation between the template and
// the window of target whose top-left corner is (ox, oy):
//
//	Σ(s·t) / sqrt(Σs² · Σt²)
//
// It returns 0 when the window leaves the target or the denominator is below
// machine epsilon. The value is not clamped.
func Score(target *Luma, st *TemplateStats, ox, oy int) float64 {
	if target == nil || st == nil || !fits(target, st.Luma, ox, oy) {
		return 0
	}
	t := st.Luma
	var sumST, sumS2 uint64
	for ty := 0; ty < t.H; ty++ {
		srow := target.Pix[(oy+ty)*target.W+ox : (oy+ty)*target.W+ox+t.W]
		trow := t.Pix[ty*t.W : (ty+1)*t.W]
		for i, s := range srow {
			sv := uint64(s)
			sumST += sv * uint64(trow[i])
			sumS2 += sv * sv
		}
	}
	return normalize(float64(sumST), float64(sumS2), st.SumT2)
}

func normalize(sumST, sumS2, sumT2 float64) float64 {
	denom := math.Sqrt(sumS2 * sumT2)
	if denom < epsilon {
		return 0
	}
	return sumST / denom
}

// epsilon is the float64 machine epsilon.
const epsilon = 2.220446049250313e-16

func fits(target, tmpl *Luma, ox, oy int) bool {
	if tmpl.W == 0 || tmpl.H == 0 {
		return false
	}
	return ox >= 0 && oy >= 0 && ox+tmpl.W <= target.W && oy+tmpl.H <= target.H
}

// crossRow returns Σ(s·t) for one template row placed at (ox, oy).
func crossRow(target *Luma, t *Luma, ox, oy, ty int) uint64 {
	base := (oy+ty)*target.W + ox
	srow := target.Pix[base : base+t.W]
	trow := t.Pix[ty*t.W : (ty+1)*t.W]
	var acc uint64
	for i, s := range srow {
		acc += uint64(s) * uint64(trow[i])
	}
	return acc
}
