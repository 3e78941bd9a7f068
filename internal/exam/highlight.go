package exam

import (
	"strings"

	"github.com/mbender/sprechtrainer/internal/model"
)

// Highlights locates each mistake's original fragment in the submitted
// text. Matching is case-sensitive and scans left to right; each
// mistake claims the first occurrence that does not overlap an already
// claimed span, so earlier mistakes win overlapping candidates.
// Fragments that cannot be located stay in the verdict but produce no
// highlight. Offsets are byte positions, half-open [start, end).
func Highlights(text string, mistakes []model.Mistake) []Highlight {
	var (
		out     []Highlight
		claimed [][2]int
	)
	for i, m := range mistakes {
		if m.Original == "" {
			continue
		}
		start, ok := findUnclaimed(text, m.Original, claimed)
		if !ok {
			continue
		}
		end := start + len(m.Original)
		claimed = append(claimed, [2]int{start, end})
		out = append(out, Highlight{Start: start, End: end, Mistake: i})
	}
	return out
}

func findUnclaimed(text, frag string, claimed [][2]int) (int, bool) {
	from := 0
	for {
		rel := strings.Index(text[from:], frag)
		if rel < 0 {
			return 0, false
		}
		start := from + rel
		end := start + len(frag)
		if !overlaps(start, end, claimed) {
			return start, true
		}
		from = start + 1
	}
}

func overlaps(start, end int, claimed [][2]int) bool {
	for _, c := range claimed {
		if start < c[1] && end > c[0] {
			return true
		}
	}
	return false
}
