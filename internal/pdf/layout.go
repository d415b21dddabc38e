package pdf

import (
	"math"
	"sort"
	"strings"
)

type lineCluster struct {
	yRef  float64
	frags []TextFragment
}

// ClusterLines groups the fragments of one page into lines and returns the
// line texts top-to-bottom. Lines shorter than MinPrintableChars after
// trimming are dropped. The result depends only on the input fragments.
func ClusterLines(fragments []TextFragment) []string {
	clusters := clusterFragments(fragments)

	lines := make([]string, 0, len(clusters))
	for _, c := range clusters {
		text := joinFragments(c)
		if len([]rune(strings.TrimSpace(text))) >= MinPrintableChars {
			lines = append(lines, text)
		}
	}
	return lines
}

// clusterFragments assigns every fragment to the first cluster whose running
// mean center lies within LineYTolerance, updating that mean as it grows.
func clusterFragments(fragments []TextFragment) [][]TextFragment {
	if len(fragments) == 0 {
		return nil
	}

	sorted := make([]TextFragment, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := sorted[i].YCenter(), sorted[j].YCenter()
		if ci != cj {
			return ci < cj
		}
		return sorted[i].X0 < sorted[j].X0
	})

	var clusters []*lineCluster
	for _, frag := range sorted {
		yc := frag.YCenter()
		placed := false
		for _, c := range clusters {
			if math.Abs(yc-c.yRef) <= LineYTolerance {
				c.frags = append(c.frags, frag)
				n := float64(len(c.frags))
				c.yRef = (c.yRef*(n-1) + yc) / n
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &lineCluster{yRef: yc, frags: []TextFragment{frag}})
		}
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].yRef < clusters[j].yRef
	})

	out := make([][]TextFragment, len(clusters))
	for i, c := range clusters {
		sort.SliceStable(c.frags, func(a, b int) bool {
			return c.frags[a].X0 < c.frags[b].X0
		})
		out[i] = c.frags
	}
	return out
}

// joinFragments concatenates a line's fragments left to right, inserting
// spaces for horizontal gaps wider than MinXGapForSpace.
func joinFragments(frags []TextFragment) string {
	if len(frags) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(frags[0].Text)
	prevX1 := frags[0].X1

	for _, f := range frags[1:] {
		gap := f.X0 - prevX1
		if gap > MinXGapForSpace {
			extra := 0
			if MultiSpaceGapStep > 0 {
				extra = int(math.Floor(gap / MultiSpaceGapStep))
			}
			b.WriteString(strings.Repeat(" ", 1+max(0, extra)))
		}
		b.WriteString(f.Text)
		prevX1 = f.X1
	}

	return strings.TrimSpace(b.String())
}
