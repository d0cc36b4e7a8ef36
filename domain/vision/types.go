package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	// Extra decoders so patterns may be stored in any format a screenshot
	// tool produces, not only the stdlib PNG/JPEG/GIF set.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultSimilarity is the similarity threshold of a fresh Pattern and of a
// fresh Matcher.
const DefaultSimilarity = 0.7

// ErrInvalidPattern is returned when a pattern carries no image bytes or the
// bytes cannot be decoded.
var ErrInvalidPattern = errors.New("invalid pattern")

// Pattern is an encoded template image plus matching parameters. Patterns are
// values: the builder methods return modified copies and never touch the
// receiver.
type Pattern struct {
	data       []byte
	name       string
	similarity float64
	offset     image.Point
}

// NewPattern wraps encoded image bytes (PNG, JPEG, GIF, BMP, TIFF, WebP).
// The slice is copied.
func NewPattern(data []byte) Pattern {
	return Pattern{data: bytes.Clone(data), similarity: DefaultSimilarity}
}

// PatternFromFile reads a pattern image from disk. The file name becomes the
// pattern name used in error messages.
func PatternFromFile(path string) (Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pattern{}, fmt.Errorf("read pattern %s: %w", path, err)
	}
	p := NewPattern(data)
	p.name = filepath.Base(path)
	return p, nil
}

// Similar returns a copy with the similarity threshold clamped to [0,1].
func (p Pattern) Similar(s float64) Pattern {
	p.similarity = clamp01(s)
	return p
}

// TargetOffset returns a copy whose click target is shifted by (x, y) from
// the match center. Matching ignores the offset.
func (p Pattern) TargetOffset(x, y int) Pattern {
	p.offset = image.Pt(x, y)
	return p
}

// Named returns a copy carrying a display name.
func (p Pattern) Named(name string) Pattern {
	p.name = name
	return p
}

func (p Pattern) Similarity() float64 { return p.similarity }
func (p Pattern) Offset() image.Point { return p.offset }
func (p Pattern) IsValid() bool       { return len(p.data) > 0 }
func (p Pattern) Size() int           { return len(p.data) }

// Name returns the display name, falling back to a size description.
func (p Pattern) Name() string {
	if p.name != "" {
		return p.name
	}
	return fmt.Sprintf("pattern(%d bytes)", len(p.data))
}

// Decode decodes the template image. Each call decodes afresh.
func (p Pattern) Decode() (image.Image, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidPattern, p.Name())
	}
	img, err := imaging.Decode(bytes.NewReader(p.data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidPattern, p.Name(), err)
	}
	return img, nil
}

// Match is a located occurrence of a pattern.
type Match struct {
	Region
	Score  float64
	offset image.Point
}

// NewMatch builds a match without a target offset.
func NewMatch(r Region, score float64) Match {
	return Match{Region: r, Score: score}
}

// Target is the point a caller should act on: the center shifted by the
// pattern's target offset.
func (m Match) Target() image.Point {
	return m.Center().Add(m.offset)
}

// IsGood reports whether the score reaches threshold.
func (m Match) IsGood(threshold float64) bool { return m.Score >= threshold }

// ScorePercent formats the score as a percentage with one decimal.
func (m Match) ScorePercent() string { return fmt.Sprintf("%.1f%%", m.Score*100) }

// Translate returns the match moved by (dx, dy); used to map region-local
// matches back into screen space.
func (m Match) Translate(dx, dy int) Match {
	m.Region = m.Region.Offset(dx, dy)
	return m
}

func (m Match) String() string {
	return fmt.Sprintf("match%s score=%.3f", m.Region, m.Score)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
