package vision

import (
	"image"
	"runtime"
	"sync"
)

// Frame is a target image prepared for searching: its luminance and the
// summed-area table of squared luminance. Prepare a frame once when several
// patterns are searched in the same capture.
type Frame struct {
	Luma *Luma
	sq   *squareIntegral
}

// Prepare converts img into a searchable frame.
func Prepare(img image.Image) *Frame {
	return PrepareLuma(FromImage(img))
}

// PrepareLuma wraps an existing luminance buffer.
func PrepareLuma(l *Luma) *Frame {
	return &Frame{Luma: l, sq: buildSquareIntegral(l)}
}

// Matcher searches frames for patterns with normalized cross-correlation.
// The zero value is not useful; use NewMatcher. Matchers are values and the
// With* builders return copies, so a configured Matcher is safe to share.
type Matcher struct {
	minSimilarity float64
	workers       int
}

func NewMatcher() Matcher {
	return Matcher{minSimilarity: DefaultSimilarity}
}

// WithMinSimilarity returns a copy with the floor threshold clamped to [0,1].
// The effective threshold of a search is max(pattern similarity, floor).
func (m Matcher) WithMinSimilarity(s float64) Matcher {
	m.minSimilarity = clamp01(s)
	return m
}

// WithWorkers bounds the number of goroutines scanning rows. n <= 0 uses
// runtime.NumCPU.
func (m Matcher) WithWorkers(n int) Matcher {
	m.workers = n
	return m
}

func (m Matcher) MinSimilarity() float64 { return m.minSimilarity }

// Threshold returns the effective threshold applied to p.
func (m Matcher) Threshold(p Pattern) float64 {
	return max(p.similarity, m.minSimilarity)
}

// Find returns the best-scoring location of p in target. ok is false when
// the best score is below threshold or the template does not fit. err is
// only set when the pattern cannot be decoded.
func (m Matcher) Find(target image.Image, p Pattern) (Match, bool, error) {
	return m.FindInFrame(Prepare(target), p)
}

// FindAll returns every location scoring at least the threshold, with
// overlapping detections collapsed by SuppressOverlaps.
func (m Matcher) FindAll(target image.Image, p Pattern) ([]Match, error) {
	return m.FindAllInFrame(Prepare(target), p)
}

// FindInFrame is Find on a prepared frame.
func (m Matcher) FindInFrame(f *Frame, p Pattern) (Match, bool, error) {
	tmpl, err := p.Decode()
	if err != nil {
		return Match{}, false, err
	}
	best, ok := m.FindStats(f, p, Precompute(tmpl))
	return best, ok, nil
}

// FindAllInFrame is FindAll on a prepared frame.
func (m Matcher) FindAllInFrame(f *Frame, p Pattern) ([]Match, error) {
	tmpl, err := p.Decode()
	if err != nil {
		return nil, err
	}
	return m.FindAllStats(f, p, Precompute(tmpl)), nil
}

// FindStats searches f with template statistics computed earlier from p,
// so polling loops decode a pattern once per call.
func (m Matcher) FindStats(f *Frame, p Pattern, st *TemplateStats) (Match, bool) {
	best, ok := m.best(f, st)
	if !ok || best.Score < m.Threshold(p) {
		return Match{}, false
	}
	best.offset = p.offset
	return best, true
}

// FindAllStats is FindAllInFrame with precomputed template statistics.
func (m Matcher) FindAllStats(f *Frame, p Pattern, st *TemplateStats) []Match {
	matches := m.above(f, st, m.Threshold(p))
	for i := range matches {
		matches[i].offset = p.offset
	}
	return SuppressOverlaps(matches)
}

type rowBest struct {
	score float64
	x     int
}

// best runs the row-parallel scan and reduces the per-row winners. Ties keep
// the earliest row, then the earliest column.
func (m Matcher) best(f *Frame, st *TemplateStats) (Match, bool) {
	rows, cols := validOffsets(f, st)
	if rows == 0 || cols == 0 {
		return Match{}, false
	}
	perRow := make([]rowBest, rows)
	m.forEachRow(rows, func(y int) {
		rb := rowBest{score: -1}
		for x := 0; x < cols; x++ {
			if s := scoreAt(f, st, x, y); s > rb.score {
				rb = rowBest{score: s, x: x}
			}
		}
		perRow[y] = rb
	})

	bestY := 0
	for y := 1; y < rows; y++ {
		if perRow[y].score > perRow[bestY].score {
			bestY = y
		}
	}
	rb := perRow[bestY]
	r := Region{X: rb.x, Y: bestY, W: st.Luma.W, H: st.Luma.H}
	return Match{Region: r, Score: rb.score}, true
}

// above collects every offset scoring at least threshold, in scan order.
func (m Matcher) above(f *Frame, st *TemplateStats, threshold float64) []Match {
	rows, cols := validOffsets(f, st)
	if rows == 0 || cols == 0 {
		return nil
	}
	perRow := make([][]Match, rows)
	m.forEachRow(rows, func(y int) {
		var hits []Match
		for x := 0; x < cols; x++ {
			if s := scoreAt(f, st, x, y); s >= threshold {
				hits = append(hits, Match{Region: Region{X: x, Y: y, W: st.Luma.W, H: st.Luma.H}, Score: s})
			}
		}
		perRow[y] = hits
	})
	var out []Match
	for _, hits := range perRow {
		out = append(out, hits...)
	}
	return out
}

// forEachRow splits [0, rows) into contiguous bands, one goroutine per band.
// fn must only write state owned by its row index.
func (m Matcher) forEachRow(rows int, fn func(y int)) {
	workers := m.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, rows)
	if workers <= 1 {
		for y := 0; y < rows; y++ {
			fn(y)
		}
		return
	}
	band := (rows + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < rows; start += band {
		end := min(start+band, rows)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for y := lo; y < hi; y++ {
				fn(y)
			}
		}(start, end)
	}
	wg.Wait()
}

// validOffsets returns how many vertical and horizontal template placements
// fit inside the frame. A template larger than the frame yields zero.
func validOffsets(f *Frame, st *TemplateStats) (rows, cols int) {
	if f == nil || st == nil || st.Luma.W == 0 || st.Luma.H == 0 {
		return 0, 0
	}
	rows = f.Luma.H - st.Luma.H + 1
	cols = f.Luma.W - st.Luma.W + 1
	if rows <= 0 || cols <= 0 {
		return 0, 0
	}
	return rows, cols
}

// scoreAt is Score with Σs² read from the frame's summed-area table.
func scoreAt(f *Frame, st *TemplateStats, x, y int) float64 {
	t := st.Luma
	var sumST uint64
	for ty := 0; ty < t.H; ty++ {
		sumST += crossRow(f.Luma, t, x, y, ty)
	}
	sumS2 := f.sq.window(x, y, t.W, t.H)
	return normalize(float64(sumST), float64(sumS2), st.SumT2)
}
