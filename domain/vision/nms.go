package vision

import (
	"cmp"
	"slices"
)

// OverlapLimit is the IoU above which a lower-scoring match is suppressed.
const OverlapLimit = 0.5

// SuppressOverlaps keeps one representative per cluster of overlapping
// matches: matches are ordered by descending score and every later match
// whose IoU with a kept one exceeds OverlapLimit is dropped. Equal scores
// keep their input order. The input slice is not modified.
func SuppressOverlaps(matches []Match) []Match {
	if len(matches) < 2 {
		return slices.Clone(matches)
	}
	sorted := slices.Clone(matches)
	slices.SortStableFunc(sorted, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})

	suppressed := make([]bool, len(sorted))
	kept := make([]Match, 0, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && sorted[i].Region.Overlap(sorted[j].Region) > OverlapLimit {
				suppressed[j] = true
			}
		}
	}
	return kept
}
