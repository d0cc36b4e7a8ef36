package vision

// PixelDiffThreshold is the per-pixel luminance difference (0-255 scale)
// above which a pixel counts as changed.
const PixelDiffThreshold = 20

// ChangedFraction returns the fraction of pixels in [0,1] whose luminance
// differs by more than PixelDiffThreshold. Buffers of different size are
// fully changed; two empty buffers are unchanged.
func ChangedFraction(a, b *Luma) float64 {
	return ChangedFractionAbove(a, b, PixelDiffThreshold)
}

// ChangedFractionAbove is ChangedFraction with an explicit per-pixel threshold.
func ChangedFractionAbove(a, b *Luma, threshold int) float64 {
	if a == nil || b == nil || a.W != b.W || a.H != b.H {
		return 1
	}
	if len(a.Pix) == 0 {
		return 0
	}
	changed := 0
	for i, av := range a.Pix {
		d := int(av) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		if d > threshold {
			changed++
		}
	}
	return float64(changed) / float64(len(a.Pix))
}
