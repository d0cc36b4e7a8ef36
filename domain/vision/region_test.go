package vision

import (
	"image"
	"math"
	"testing"
)

func TestRegion_OverlapSymmetricAndBounded(t *testing.T) {
	cases := []struct {
		a, b Region
		want float64
	}{
		{NewRegion(0, 0, 10, 10), NewRegion(0, 0, 10, 10), 1},
		{NewRegion(0, 0, 10, 10), NewRegion(20, 20, 5, 5), 0},
		{NewRegion(0, 0, 10, 10), NewRegion(10, 0, 10, 10), 0}, // touching edges
		{NewRegion(0, 0, 10, 10), NewRegion(5, 0, 10, 10), 50.0 / 150.0},
		{NewRegion(0, 0, 10, 10), NewRegion(2, 2, 0, 0), 0},
	}
	for _, c := range cases {
		ab, ba := c.a.Overlap(c.b), c.b.Overlap(c.a)
		if ab != ba {
			t.Fatalf("overlap not symmetric for %v %v: %v vs %v", c.a, c.b, ab, ba)
		}
		if math.Abs(ab-c.want) > 1e-12 {
			t.Fatalf("overlap(%v,%v)=%v want %v", c.a, c.b, ab, c.want)
		}
		if ab < 0 || ab > 1 {
			t.Fatalf("overlap out of range: %v", ab)
		}
	}
}

func TestRegion_NegativeDimensionsClamp(t *testing.T) {
	r := NewRegion(5, 5, -3, 4)
	if r.W != 0 || r.H != 4 || !r.Empty() {
		t.Fatalf("unexpected region %v", r)
	}
	if r.Expand(-10).W != 0 {
		t.Fatalf("shrinking below zero must clamp")
	}
}

func TestRegion_NegativeLiteralActsEmpty(t *testing.T) {
	bad := Region{X: 0, Y: 0, W: -3, H: 10}
	good := NewRegion(0, 0, 10, 10)
	if !bad.Empty() || bad.Area() != 0 {
		t.Fatalf("negative width: empty=%v area=%d", bad.Empty(), bad.Area())
	}
	if got := good.Overlap(bad); got != 0 {
		t.Fatalf("overlap with negative-width region = %v, want 0", got)
	}
	if got := (Region{X: 5, Y: 5, W: -4, H: -4}).Rect(); !got.Empty() {
		t.Fatalf("Rect must not flip negative sizes: %v", got)
	}
	if (Region{X: 2, Y: 2, W: 4, H: -1}).Area() != 0 {
		t.Fatalf("negative height must not yield negative area")
	}
}

func TestRegion_FromCornersAndRect(t *testing.T) {
	r := FromCorners(30, 40, 10, 5)
	if r != NewRegion(10, 5, 20, 35) {
		t.Fatalf("FromCorners = %v", r)
	}
	if got := RegionFromRect(r.Rect()); got != r {
		t.Fatalf("rect round trip %v != %v", got, r)
	}
	if c := r.Center(); c != image.Pt(20, 22) {
		t.Fatalf("center = %v", c)
	}
}

func TestRegion_ContainmentAndIntersection(t *testing.T) {
	outer := NewRegion(0, 0, 100, 100)
	inner := NewRegion(10, 10, 20, 20)
	if !outer.ContainsRegion(inner) || inner.ContainsRegion(outer) {
		t.Fatalf("containment wrong")
	}
	if !outer.Contains(0, 0) || outer.Contains(100, 50) {
		t.Fatalf("point containment wrong")
	}
	in, ok := outer.Intersection(NewRegion(90, 90, 20, 20))
	if !ok || in != NewRegion(90, 90, 10, 10) {
		t.Fatalf("intersection = %v ok=%v", in, ok)
	}
	if outer.Intersects(NewRegion(200, 0, 5, 5)) {
		t.Fatalf("disjoint regions reported intersecting")
	}
	if got := inner.Offset(5, -5); got != NewRegion(15, 5, 20, 20) {
		t.Fatalf("offset = %v", got)
	}
}

func TestMatch_TargetUsesPatternOffset(t *testing.T) {
	m := Match{Region: NewRegion(10, 10, 20, 10), Score: 0.91, offset: image.Pt(3, -2)}
	if got := m.Target(); got != image.Pt(23, 13) {
		t.Fatalf("target = %v", got)
	}
	if m.ScorePercent() != "91.0%" {
		t.Fatalf("percent = %s", m.ScorePercent())
	}
	if moved := m.Translate(100, 200); moved.X != 110 || moved.Y != 210 || moved.Score != m.Score {
		t.Fatalf("translate = %v", moved)
	}
}

func TestPattern_BuildersReturnCopies(t *testing.T) {
	base := NewPattern([]byte{1, 2, 3})
	tuned := base.Similar(1.5).TargetOffset(4, 5).Named("button")
	if base.Similarity() != DefaultSimilarity || base.Offset() != (image.Point{}) {
		t.Fatalf("builder mutated receiver: %+v", base)
	}
	if tuned.Similarity() != 1 || tuned.Offset() != image.Pt(4, 5) || tuned.Name() != "button" {
		t.Fatalf("unexpected tuned pattern %+v", tuned)
	}
	if _, err := NewPattern(nil).Decode(); err == nil {
		t.Fatalf("expected error for empty pattern")
	}
	if _, err := base.Decode(); err == nil {
		t.Fatalf("expected error for garbage bytes")
	}
}
